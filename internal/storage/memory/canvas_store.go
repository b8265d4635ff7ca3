package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
)

// CanvasStore implements canvas.Store in memory.
type CanvasStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]canvas.Canvas
}

// NewCanvasStore creates an empty in-memory canvas store.
func NewCanvasStore() *CanvasStore {
	return &CanvasStore{rows: make(map[int64]canvas.Canvas)}
}

// First returns the lowest-id canvas.
func (s *CanvasStore) First(_ context.Context) (canvas.Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstLocked()
}

// Get returns the canvas with the given id.
func (s *CanvasStore) Get(_ context.Context, id int64) (canvas.Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return canvas.Canvas{}, canvas.ErrNotFound
	}
	return c, nil
}

// Create inserts a canvas with defaults for unset fields.
func (s *CanvasStore) Create(_ context.Context, fields canvas.Fields) (canvas.Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(fields.WithDefaults()), nil
}

// Update overwrites the set fields of canvas id.
func (s *CanvasStore) Update(_ context.Context, id int64, fields canvas.Fields) (canvas.Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return canvas.Canvas{}, canvas.ErrNotFound
	}
	fields.Apply(&c)
	s.rows[id] = c
	return c, nil
}

// MutateFirst runs fn against the first canvas while holding the store
// lock. When fn fails, a row created for this call is discarded.
func (s *CanvasStore) MutateFirst(_ context.Context, fn func(*canvas.Canvas) (bool, error)) (canvas.Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.firstLocked()
	created := false
	if err != nil {
		c = canvas.Canvas{ID: s.nextID + 1, Nodes: canvas.DefaultNodes, Edges: canvas.DefaultEdges, CanvasState: canvas.DefaultCanvasState}
		created = true
	}
	working := c
	changed, err := fn(&working)
	if err != nil {
		return canvas.Canvas{}, err
	}
	if created {
		s.nextID = c.ID
	}
	if changed || created {
		working.ID = c.ID
		s.rows[c.ID] = working
		return working, nil
	}
	return c, nil
}

// Ping always succeeds.
func (s *CanvasStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *CanvasStore) Close() error { return nil }

func (s *CanvasStore) firstLocked() (canvas.Canvas, error) {
	if len(s.rows) == 0 {
		return canvas.Canvas{}, canvas.ErrNotFound
	}
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return s.rows[ids[0]], nil
}

func (s *CanvasStore) insertLocked(c canvas.Canvas) canvas.Canvas {
	s.nextID++
	c.ID = s.nextID
	s.rows[c.ID] = c
	return c
}

// Package postgres provides a Postgres-backed canvas store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable is the canvas table name.
const DefaultTable = "canvas"

// CanvasStoreConfig controls the Postgres connection pool.
type CanvasStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbPool is the subset of *pgxpool.Pool the store needs; pgxmock satisfies it too.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// CanvasStore implements canvas.Store on Postgres.
type CanvasStore struct {
	pool  dbPool
	table string
	q     queries
}

type queries struct {
	schema, first, byID, insert, insertDefault, update, overwrite, lock string
}

func buildQueries(table string) queries {
	const cols = "id, nodes, edges, canvas_state"
	return queries{
		schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	nodes TEXT NOT NULL DEFAULT '[]',
	edges TEXT NOT NULL DEFAULT '[]',
	canvas_state TEXT NOT NULL DEFAULT '{}'
)`, table),
		first:         fmt.Sprintf("SELECT %s FROM %s ORDER BY id LIMIT 1", cols, table),
		byID:          fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", cols, table),
		insert:        fmt.Sprintf("INSERT INTO %s (nodes, edges, canvas_state) VALUES ($1, $2, $3) RETURNING %s", table, cols),
		insertDefault: fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", table, cols),
		update: fmt.Sprintf(`UPDATE %s SET
	nodes = COALESCE($2, nodes),
	edges = COALESCE($3, edges),
	canvas_state = COALESCE($4, canvas_state)
WHERE id = $1 RETURNING %s`, table, cols),
		overwrite: fmt.Sprintf("UPDATE %s SET nodes = $2, edges = $3, canvas_state = $4 WHERE id = $1", table),
		lock:      fmt.Sprintf("LOCK TABLE %s IN SHARE ROW EXCLUSIVE MODE", table),
	}
}

// NewCanvasStore connects a pool and creates the table when missing.
func NewCanvasStore(ctx context.Context, cfg CanvasStoreConfig) (*CanvasStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewCanvasStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewCanvasStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewCanvasStoreWithPool(pool dbPool, table string) (*CanvasStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &CanvasStore{pool: pool, table: table, q: buildQueries(table)}, nil
}

// EnsureSchema creates the canvas table if it does not exist.
func (s *CanvasStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, s.q.schema); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// First returns the lowest-id canvas.
func (s *CanvasStore) First(ctx context.Context) (canvas.Canvas, error) {
	c, err := scanCanvas(s.pool.QueryRow(ctx, s.q.first))
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("select first canvas: %w", err)
	}
	return c, nil
}

// Get returns the canvas with the given id.
func (s *CanvasStore) Get(ctx context.Context, id int64) (canvas.Canvas, error) {
	c, err := scanCanvas(s.pool.QueryRow(ctx, s.q.byID, id))
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("select canvas %d: %w", id, err)
	}
	return c, nil
}

// Create inserts a canvas and returns the stored row.
func (s *CanvasStore) Create(ctx context.Context, fields canvas.Fields) (canvas.Canvas, error) {
	v := fields.WithDefaults()
	c, err := scanCanvas(s.pool.QueryRow(ctx, s.q.insert, v.Nodes, v.Edges, v.CanvasState))
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("insert canvas: %w", err)
	}
	return c, nil
}

// Update overwrites the set fields of canvas id and returns the stored row.
func (s *CanvasStore) Update(ctx context.Context, id int64, fields canvas.Fields) (canvas.Canvas, error) {
	c, err := scanCanvas(s.pool.QueryRow(ctx, s.q.update, id,
		nullable(fields.Nodes), nullable(fields.Edges), nullable(fields.CanvasState)))
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("update canvas %d: %w", id, err)
	}
	return c, nil
}

// MutateFirst runs fn against the first canvas under a table lock, creating
// the row when the table is empty.
func (s *CanvasStore) MutateFirst(ctx context.Context, fn func(*canvas.Canvas) (bool, error)) (canvas.Canvas, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, s.q.lock); err != nil {
		return canvas.Canvas{}, fmt.Errorf("lock %s: %w", s.table, err)
	}
	c, err := scanCanvas(tx.QueryRow(ctx, s.q.first))
	if errors.Is(err, canvas.ErrNotFound) {
		c, err = scanCanvas(tx.QueryRow(ctx, s.q.insertDefault))
	}
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("load first canvas: %w", err)
	}

	changed, err := fn(&c)
	if err != nil {
		return canvas.Canvas{}, err
	}
	if changed {
		if _, err := tx.Exec(ctx, s.q.overwrite, c.ID, c.Nodes, c.Edges, c.CanvasState); err != nil {
			return canvas.Canvas{}, fmt.Errorf("write canvas %d: %w", c.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return canvas.Canvas{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return c, nil
}

// Ping checks database connectivity.
func (s *CanvasStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *CanvasStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func scanCanvas(row pgx.Row) (canvas.Canvas, error) {
	var c canvas.Canvas
	if err := row.Scan(&c.ID, &c.Nodes, &c.Edges, &c.CanvasState); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return canvas.Canvas{}, canvas.ErrNotFound
		}
		return canvas.Canvas{}, err
	}
	return c, nil
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

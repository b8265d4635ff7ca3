// Package sqlite provides the default single-file canvas store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver" // registers "sqlite3"
	_ "github.com/ncruces/go-sqlite3/embed"  // bundled SQLite build

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
)

const schema = `CREATE TABLE IF NOT EXISTS canvas (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nodes TEXT NOT NULL DEFAULT '[]',
	edges TEXT NOT NULL DEFAULT '[]',
	canvas_state TEXT NOT NULL DEFAULT '{}'
)`

const (
	selectFirst   = `SELECT id, nodes, edges, canvas_state FROM canvas ORDER BY id LIMIT 1`
	selectByID    = `SELECT id, nodes, edges, canvas_state FROM canvas WHERE id = ?`
	insertRow     = `INSERT INTO canvas (nodes, edges, canvas_state) VALUES (?, ?, ?) RETURNING id, nodes, edges, canvas_state`
	insertDefault = `INSERT INTO canvas DEFAULT VALUES RETURNING id, nodes, edges, canvas_state`
	updateRow     = `UPDATE canvas SET
	nodes = COALESCE(?, nodes),
	edges = COALESCE(?, edges),
	canvas_state = COALESCE(?, canvas_state)
WHERE id = ? RETURNING id, nodes, edges, canvas_state`
	overwriteRow = `UPDATE canvas SET nodes = ?, edges = ?, canvas_state = ? WHERE id = ?`
)

// CanvasStore implements canvas.Store on a SQLite database file.
type CanvasStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
// Writes go through a single connection and transactions begin IMMEDIATE,
// so MutateFirst is serialized.
func Open(ctx context.Context, path string) (*CanvasStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open canvas db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping canvas db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create canvas table: %w", err)
	}
	return &CanvasStore{db: db}, nil
}

// First returns the lowest-id canvas.
func (s *CanvasStore) First(ctx context.Context) (canvas.Canvas, error) {
	c, err := scanCanvas(s.db.QueryRowContext(ctx, selectFirst))
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("select first canvas: %w", err)
	}
	return c, nil
}

// Get returns the canvas with the given id.
func (s *CanvasStore) Get(ctx context.Context, id int64) (canvas.Canvas, error) {
	c, err := scanCanvas(s.db.QueryRowContext(ctx, selectByID, id))
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("select canvas %d: %w", id, err)
	}
	return c, nil
}

// Create inserts a canvas and returns the stored row.
func (s *CanvasStore) Create(ctx context.Context, fields canvas.Fields) (canvas.Canvas, error) {
	v := fields.WithDefaults()
	c, err := scanCanvas(s.db.QueryRowContext(ctx, insertRow, v.Nodes, v.Edges, v.CanvasState))
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("insert canvas: %w", err)
	}
	return c, nil
}

// Update overwrites the set fields of canvas id and returns the stored row.
func (s *CanvasStore) Update(ctx context.Context, id int64, fields canvas.Fields) (canvas.Canvas, error) {
	c, err := scanCanvas(s.db.QueryRowContext(ctx, updateRow,
		nullString(fields.Nodes), nullString(fields.Edges), nullString(fields.CanvasState), id))
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("update canvas %d: %w", id, err)
	}
	return c, nil
}

// MutateFirst runs fn against the first canvas inside one write
// transaction, creating the row when the table is empty.
func (s *CanvasStore) MutateFirst(ctx context.Context, fn func(*canvas.Canvas) (bool, error)) (canvas.Canvas, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	c, err := scanCanvas(tx.QueryRowContext(ctx, selectFirst))
	if errors.Is(err, canvas.ErrNotFound) {
		c, err = scanCanvas(tx.QueryRowContext(ctx, insertDefault))
	}
	if err != nil {
		return canvas.Canvas{}, fmt.Errorf("load first canvas: %w", err)
	}

	changed, err := fn(&c)
	if err != nil {
		return canvas.Canvas{}, err
	}
	if changed {
		if _, err := tx.ExecContext(ctx, overwriteRow, c.Nodes, c.Edges, c.CanvasState, c.ID); err != nil {
			return canvas.Canvas{}, fmt.Errorf("write canvas %d: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return canvas.Canvas{}, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

// Ping checks the database handle.
func (s *CanvasStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *CanvasStore) Close() error {
	return s.db.Close()
}

func scanCanvas(row *sql.Row) (canvas.Canvas, error) {
	var c canvas.Canvas
	if err := row.Scan(&c.ID, &c.Nodes, &c.Edges, &c.CanvasState); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return canvas.Canvas{}, canvas.ErrNotFound
		}
		return canvas.Canvas{}, err
	}
	return c, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

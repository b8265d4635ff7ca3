package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
)

var columns = []string{"id", "nodes", "edges", "canvas_state"}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *CanvasStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewCanvasStoreWithPool(mock, "")
	require.NoError(t, err)
	return mock, store
}

func ptr(s string) *string { return &s }

func TestNewCanvasStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCanvasStoreWithPool(nil, "canvas")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewCanvasStoreWithPool(mock, "canvas; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")
}

func TestNewCanvasStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewCanvasStore(context.Background(), CanvasStoreConfig{})
	require.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS canvas")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFirst(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, nodes, edges, canvas_state FROM canvas ORDER BY id LIMIT 1")).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(int64(3), "[]", "[]", `{"zoom":1}`))

	got, err := store.First(context.Background())
	require.NoError(t, err)
	assert.Equal(t, canvas.Canvas{ID: 3, Nodes: "[]", Edges: "[]", CanvasState: `{"zoom":1}`}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFirstEmptyTable(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT id, nodes").WillReturnError(pgx.ErrNoRows)

	_, err := store.First(context.Background())
	require.ErrorIs(t, err, canvas.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM canvas WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), 42)
	require.ErrorIs(t, err, canvas.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppliesDefaults(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO canvas (nodes, edges, canvas_state)")).
		WithArgs(`[{"id":"1"}]`, "[]", "{}").
		WillReturnRows(pgxmock.NewRows(columns).AddRow(int64(1), `[{"id":"1"}]`, "[]", "{}"))

	got, err := store.Create(context.Background(), canvas.Fields{Nodes: ptr(`[{"id":"1"}]`)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, `[{"id":"1"}]`, got.Nodes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateKeepsUnsetFields(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery(`UPDATE canvas SET\s+nodes = COALESCE`).
		WithArgs(int64(2), nil, `[{"id":"e"}]`, nil).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(int64(2), "[]", `[{"id":"e"}]`, "{}"))

	got, err := store.Update(context.Background(), 2, canvas.Fields{Edges: ptr(`[{"id":"e"}]`)})
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"e"}]`, got.Edges)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRow(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery("UPDATE canvas SET").
		WithArgs(int64(9), "[]", "[]", "{}").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Update(context.Background(), 9, canvas.Fields{Nodes: ptr("[]"), Edges: ptr("[]"), CanvasState: ptr("{}")})
	require.ErrorIs(t, err, canvas.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateFirstCreatesAndWrites(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("LOCK TABLE canvas IN SHARE ROW EXCLUSIVE MODE")).
		WillReturnResult(pgxmock.NewResult("LOCK TABLE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id LIMIT 1")).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO canvas DEFAULT VALUES")).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(int64(1), "[]", "[]", "{}"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE canvas SET nodes = $2")).
		WithArgs(int64(1), `[{"id":"n"}]`, "[]", "{}").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	got, err := store.MutateFirst(context.Background(), func(c *canvas.Canvas) (bool, error) {
		c.Nodes = `[{"id":"n"}]`
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, `[{"id":"n"}]`, got.Nodes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateFirstUnchangedSkipsWrite(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("LOCK TABLE canvas").WillReturnResult(pgxmock.NewResult("LOCK TABLE", 0))
	mock.ExpectQuery("ORDER BY id LIMIT 1").
		WillReturnRows(pgxmock.NewRows(columns).AddRow(int64(5), "[]", "[]", "{}"))
	mock.ExpectCommit()

	got, err := store.MutateFirst(context.Background(), func(*canvas.Canvas) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateFirstRollsBackOnError(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("LOCK TABLE canvas").WillReturnResult(pgxmock.NewResult("LOCK TABLE", 0))
	mock.ExpectQuery("ORDER BY id LIMIT 1").
		WillReturnRows(pgxmock.NewRows(columns).AddRow(int64(5), "[]", "[]", "{}"))
	mock.ExpectRollback()

	boom := errors.New("boom")
	_, err := store.MutateFirst(context.Background(), func(*canvas.Canvas) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateFirstLockFailure(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("LOCK TABLE canvas").WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	_, err := store.MutateFirst(context.Background(), func(*canvas.Canvas) (bool, error) {
		t.Fatal("fn must not run without the lock")
		return false, nil
	})
	require.ErrorContains(t, err, "lock timeout")
	require.NoError(t, mock.ExpectationsWereMet())
}

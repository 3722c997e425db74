package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "memory", "para.sqlite"))
	require.NoError(t, err, "failed to open test db")
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesRoutingTable(t *testing.T) {
	db := openTestDB(t)

	n, err := db.CountRoutes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, DriverSQLite, db.Driver())
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "para.sqlite")

	db1, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, db1.InsertRoute(ctx, Route{Source: "blog-x", InsightContent: "a", ParaCategory: "areas"}))
	require.NoError(t, db1.Close())

	db2, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	defer db2.Close()

	n, err := db2.CountRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "reopening must keep existing rows")
}

func TestOpenLeavesForeignTablesAlone(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "para.sqlite")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO notes (body) VALUES ('keep me')`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	defer db.Close()

	var body string
	require.NoError(t, db.conn.QueryRow(`SELECT body FROM notes`).Scan(&body))
	assert.Equal(t, "keep me", body)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	assert.Error(t, err)
}

func TestOpenExistingCreatesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	path := filepath.Join(dir, "para.sqlite")

	_, err := OpenExisting(context.Background(), DriverSQLite, path)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "data directory must not be created")
}

func TestOpenExistingLeavesSchemaAlone(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "para.sqlite")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := OpenExisting(ctx, DriverSQLite, path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.conn.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'cis_routing'`).Scan(&n))
	assert.Equal(t, 0, n)
	_, err = db.CountRoutes(ctx)
	assert.Error(t, err)
}

func TestOpenExistingReadsRoutes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "para.sqlite")

	db1, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, db1.InsertRoute(ctx, Route{Source: "blog-x", InsightContent: "a", ParaCategory: "areas"}))
	require.NoError(t, db1.Close())

	db2, err := OpenExisting(ctx, DriverSQLite, path)
	require.NoError(t, err)
	defer db2.Close()
	n, err := db2.CountRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertRouteAndRead(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	for _, content := range []string{"first insight", "second insight"} {
		require.NoError(t, db.InsertRoute(ctx, Route{
			Source:         "blog-x",
			SourceTitle:    "Focus Blocks",
			SourceURL:      "https://blog-x.example/a1",
			InsightContent: content,
			ParaCategory:   "areas",
			ParaTarget:     "ef-coaching",
			Rationale:      "Deep work",
			RoutedAt:       at,
		}))
	}

	routes, err := db.RoutesForURL(ctx, "https://blog-x.example/a1")
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "first insight", routes[0].InsightContent)
	assert.Equal(t, "second insight", routes[1].InsightContent)
	assert.Equal(t, InsightType, routes[0].InsightType)
	assert.Equal(t, "Focus Blocks", routes[1].SourceTitle)
	assert.True(t, at.Equal(routes[0].RoutedAt))
}

func TestInsertRouteIsNotIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r := Route{Source: "blog-x", SourceURL: "https://x/a1", InsightContent: "same", ParaCategory: "resources"}

	require.NoError(t, db.InsertRoute(ctx, r))
	require.NoError(t, db.InsertRoute(ctx, r))

	n, err := db.CountRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPlaceholderFormatFollowsDriver(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	query, _, err := pg.builder().Insert("cis_routing").Columns("source", "rationale").Values("a", "b").ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "$1")
	assert.Contains(t, query, "$2")

	lite := &DB{driver: DriverSQLite}
	query, _, err = lite.builder().Insert("cis_routing").Columns("source").Values("a").ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "?")
}

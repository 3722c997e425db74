package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB wraps a connection to the shared PARA log.
type DB struct {
	conn   *sql.DB
	driver string
	dsn    string
}

// ErrNotFound is returned by OpenExisting when the sqlite file is missing.
var ErrNotFound = errors.New("log store does not exist")

// Open connects to the log store and makes sure cis_routing exists. For
// sqlite the DSN is a file path whose directory is created if missing.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	return open(ctx, driver, dsn, true)
}

// OpenExisting connects to a log store without creating anything: no data
// directory, no sqlite file, no journal mode change and no cis_routing table.
func OpenExisting(ctx context.Context, driver, dsn string) (*DB, error) {
	return open(ctx, driver, dsn, false)
}

func open(ctx context.Context, driver, dsn string, create bool) (*DB, error) {
	switch driver {
	case DriverSQLite:
		if dsn == ":memory:" {
			break
		}
		if !create {
			if _, err := os.Stat(dsn); err != nil {
				return nil, fmt.Errorf("%s: %w", dsn, ErrNotFound)
			}
			break
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported log store driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == DriverSQLite {
		if create {
			if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
				conn.Close()
				return nil, fmt.Errorf("setting journal mode: %w", err)
			}
		}
		if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if create {
		if err := ensureSchema(ctx, conn, driver); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensuring schema: %w", err)
		}
	}

	return &DB{conn: conn, driver: driver, dsn: dsn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Driver returns the driver name the store was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// DSN returns the data source the store was opened with.
func (db *DB) DSN() string {
	return db.dsn
}

// builder returns a statement builder using the driver's placeholder style.
func (db *DB) builder() sq.StatementBuilderType {
	if db.driver == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

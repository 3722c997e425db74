package database

import (
	"context"
	"database/sql"
	"fmt"
)

// The log store is shared with other tools, so only cis_routing is created and
// nothing is ever altered or versioned.
var routingTable = map[string]string{
	DriverSQLite: `
CREATE TABLE IF NOT EXISTS cis_routing (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    source_title TEXT,
    source_url TEXT,
    insight_type TEXT NOT NULL DEFAULT 'insight',
    insight_content TEXT NOT NULL,
    para_category TEXT NOT NULL,
    para_target TEXT,
    rationale TEXT,
    routed_at TEXT NOT NULL
)`,
	DriverPostgres: `
CREATE TABLE IF NOT EXISTS cis_routing (
    id BIGSERIAL PRIMARY KEY,
    source TEXT NOT NULL,
    source_title TEXT,
    source_url TEXT,
    insight_type TEXT NOT NULL DEFAULT 'insight',
    insight_content TEXT NOT NULL,
    para_category TEXT NOT NULL,
    para_target TEXT,
    rationale TEXT,
    routed_at TEXT NOT NULL
)`,
}

func ensureSchema(ctx context.Context, conn *sql.DB, driver string) error {
	ddl, ok := routingTable[driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", driver)
	}
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating cis_routing: %w", err)
	}
	return nil
}

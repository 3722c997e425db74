package database

import (
	"context"
	"fmt"
	"time"
)

// InsightType is the only insight_type the pipeline writes.
const InsightType = "insight"

// Route is one row of cis_routing.
type Route struct {
	ID             int64
	Source         string
	SourceTitle    string
	SourceURL      string
	InsightType    string
	InsightContent string
	ParaCategory   string
	ParaTarget     string
	Rationale      string
	RoutedAt       time.Time
}

var routeColumns = []string{
	"source", "source_title", "source_url", "insight_type", "insight_content",
	"para_category", "para_target", "rationale", "routed_at",
}

// InsertRoute appends one routed insight. Rows are never deduplicated.
func (db *DB) InsertRoute(ctx context.Context, r Route) error {
	if r.InsightType == "" {
		r.InsightType = InsightType
	}
	if r.RoutedAt.IsZero() {
		r.RoutedAt = time.Now()
	}

	query, args, err := db.builder().
		Insert("cis_routing").
		Columns(routeColumns...).
		Values(r.Source, r.SourceTitle, r.SourceURL, r.InsightType, r.InsightContent,
			r.ParaCategory, r.ParaTarget, r.Rationale, r.RoutedAt.Format(time.RFC3339)).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting route: %w", err)
	}
	return nil
}

// CountRoutes returns the number of rows in cis_routing.
func (db *DB) CountRoutes(ctx context.Context) (int, error) {
	query, args, err := db.builder().Select("COUNT(*)").From("cis_routing").ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count: %w", err)
	}
	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting routes: %w", err)
	}
	return n, nil
}

// RoutesForURL returns rows routed from one article URL, oldest first.
func (db *DB) RoutesForURL(ctx context.Context, url string) ([]Route, error) {
	query, args, err := db.builder().
		Select("id").
		Columns(routeColumns...).
		From("cis_routing").
		Where("source_url = ?", url).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	var routes []Route
	for rows.Next() {
		var r Route
		var routedAt string
		if err := rows.Scan(&r.ID, &r.Source, &r.SourceTitle, &r.SourceURL, &r.InsightType,
			&r.InsightContent, &r.ParaCategory, &r.ParaTarget, &r.Rationale, &routedAt); err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, routedAt); err == nil {
			r.RoutedAt = t
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// Package route files validated insights into the cis_routing table of the
// shared PARA log.
package route

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/parainsights/internal/database"
	"github.com/TobiSchelling/parainsights/internal/insight"
	"github.com/TobiSchelling/parainsights/internal/logging"
	"github.com/TobiSchelling/parainsights/internal/scan"
)

// Store is the part of the log store the router writes to.
type Store interface {
	InsertRoute(ctx context.Context, r database.Route) error
	Close() error
}

// Opener opens a fresh store connection.
type Opener func(ctx context.Context) (Store, error)

// SQLOpener opens the configured database as a Store.
func SQLOpener(driver, dsn string) Opener {
	return func(ctx context.Context) (Store, error) {
		db, err := database.Open(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

// Result holds the outcome of routing one article's insights.
type Result struct {
	Routed int
	Failed int
	Errs   []error
}

// Router inserts one row per insight. The store is opened per article and
// every row is written independently, so one bad row never blocks its siblings.
type Router struct {
	open   Opener
	now    func() time.Time
	logger *zap.Logger
}

// New creates a router.
func New(open Opener, logger *zap.Logger) *Router {
	return &Router{open: open, now: time.Now, logger: logging.OrNop(logger)}
}

// Route writes insights for a. Failures are logged and counted but never
// returned as an error, since routing does not decide the article's outcome.
func (r *Router) Route(ctx context.Context, a scan.Article, insights []insight.Insight) Result {
	var result Result
	if len(insights) == 0 {
		return result
	}

	store, err := r.open(ctx)
	if err != nil {
		r.logger.Error("opening log store",
			zap.String("source", a.Source),
			zap.String("slug", a.Slug),
			zap.Error(err))
		result.Failed = len(insights)
		result.Errs = append(result.Errs, fmt.Errorf("opening log store: %w", err))
		return result
	}
	defer func() {
		if err := store.Close(); err != nil {
			r.logger.Warn("closing log store", zap.Error(err))
		}
	}()

	for i, ins := range insights {
		target := ins.ParaTarget
		if target == "" {
			target = ins.Action
		}
		row := database.Route{
			Source:         a.Source,
			SourceTitle:    a.Title,
			SourceURL:      a.URL,
			InsightType:    database.InsightType,
			InsightContent: ins.Insight,
			ParaCategory:   string(ins.ParaCategory),
			ParaTarget:     target,
			Rationale:      ins.Rationale,
			RoutedAt:       r.now(),
		}
		if err := store.InsertRoute(ctx, row); err != nil {
			r.logger.Warn("routing insight failed",
				zap.String("source", a.Source),
				zap.String("slug", a.Slug),
				zap.Int("index", i),
				zap.Error(err))
			result.Failed++
			result.Errs = append(result.Errs, fmt.Errorf("insight %d: %w", i, err))
			continue
		}
		result.Routed++
	}
	return result
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/parainsights/internal/extract"
	"github.com/TobiSchelling/parainsights/internal/insight"
	"github.com/TobiSchelling/parainsights/internal/insightfile"
	"github.com/TobiSchelling/parainsights/internal/logging"
	"github.com/TobiSchelling/parainsights/internal/route"
	"github.com/TobiSchelling/parainsights/internal/scan"
)

// DefaultBatchSize is how many pending articles one run processes.
const DefaultBatchSize = 30

// DefaultRequestDelay spaces out remote extraction calls.
const DefaultRequestDelay = 300 * time.Millisecond

// progressEvery controls how often a progress line is logged.
const progressEvery = 10

// ErrArticlesFailed is returned by Run when the batch finished but at least one
// article could not be processed. Those articles stay pending.
var ErrArticlesFailed = errors.New("some articles failed")

// ErrNoValidInsights fails an article whose extraction produced items but none
// that survived validation.
var ErrNoValidInsights = errors.New("no valid insights")

// State is where an article is in its per-run lifecycle.
type State string

const (
	StateUnprocessed State = "unprocessed"
	StateExtracting  State = "extracting"
	StateValidated   State = "validated"
	StatePersisted   State = "persisted"
	StateRouted      State = "routed"
	StateFailed      State = "failed"
)

// Router files an article's insights into the log store.
type Router interface {
	Route(ctx context.Context, a scan.Article, insights []insight.Insight) route.Result
}

// Options tune a run.
type Options struct {
	BatchSize    int
	RequestDelay time.Duration
	DryRun       bool
}

// ArticleResult records what happened to one article.
type ArticleResult struct {
	Source   string
	Slug     string
	Title    string
	State    State
	Insights int
	Routed   int
	Err      error
}

// Result holds the results of a run.
type Result struct {
	Method    string
	Found     int
	Batch     int
	Processed int
	Failed    int
	Remaining int
	Insights  int
	Routed    int
	Articles  []ArticleResult
}

// Pipeline scans for pending articles and takes each through extraction,
// validation, persistence and routing.
type Pipeline struct {
	scanner  *scan.Scanner
	strategy extract.Strategy
	router   Router
	opts     Options
	limiter  *rate.Limiter
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a pipeline. Remote strategies are throttled to one call per
// RequestDelay; the pattern strategy runs unthrottled.
func New(scanner *scan.Scanner, strategy extract.Strategy, router Router, opts Options, logger *zap.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.RequestDelay <= 0 {
		opts.RequestDelay = DefaultRequestDelay
	}

	var limiter *rate.Limiter
	if strategy.Name() == extract.MethodRemote {
		limiter = rate.NewLimiter(rate.Every(opts.RequestDelay), 1)
	}

	return &Pipeline{
		scanner:  scanner,
		strategy: strategy,
		router:   router,
		opts:     opts,
		limiter:  limiter,
		now:      time.Now,
		logger:   logging.OrNop(logger),
	}
}

// Run processes one batch. A scan failure is returned as an error with a nil
// result. Per-article failures are counted and reported through
// ErrArticlesFailed once the whole batch has been attempted.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	pending, err := p.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", p.scanner.Root(), err)
	}

	batch := pending
	if len(batch) > p.opts.BatchSize {
		batch = batch[:p.opts.BatchSize]
	}

	r := &Result{
		Method: p.strategy.Name(),
		Found:  len(pending),
		Batch:  len(batch),
	}
	p.logger.Info("found pending articles",
		zap.Int("found", r.Found),
		zap.Int("batch", r.Batch),
		zap.String("method", r.Method))

	if p.opts.DryRun {
		for _, item := range batch {
			r.Articles = append(r.Articles, ArticleResult{
				Source: item.Article.Source,
				Slug:   item.Article.Slug,
				Title:  item.Article.Title,
				State:  StateUnprocessed,
			})
		}
		r.Remaining = r.Found
		return r, nil
	}

	var runErr error
	for i, item := range batch {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run interrupted: %w", err)
			break
		}

		ar := p.processArticle(ctx, item)
		r.Articles = append(r.Articles, ar)
		if ar.State == StateFailed {
			r.Failed++
			p.logger.Warn("article failed",
				zap.String("source", ar.Source),
				zap.String("slug", ar.Slug),
				zap.Error(ar.Err))
		} else {
			r.Processed++
			r.Insights += ar.Insights
			r.Routed += ar.Routed
			p.logger.Info("processed article",
				zap.String("source", ar.Source),
				zap.String("slug", ar.Slug),
				zap.Int("insights", ar.Insights),
				zap.Int("routed", ar.Routed))
		}

		if (i+1)%progressEvery == 0 {
			p.logger.Info("progress",
				zap.Int("done", i+1),
				zap.Int("batch", r.Batch),
				zap.Int("insights", r.Insights))
		}
	}
	r.Remaining = r.Found - r.Processed

	p.logger.Info("run complete",
		zap.Int("processed", r.Processed),
		zap.Int("failed", r.Failed),
		zap.Int("remaining", r.Remaining),
		zap.Int("insights", r.Insights),
		zap.Int("routed", r.Routed))

	if runErr != nil {
		return r, runErr
	}
	if r.Failed > 0 {
		return r, fmt.Errorf("%d of %d articles: %w", r.Failed, r.Batch, ErrArticlesFailed)
	}
	return r, nil
}

func (p *Pipeline) processArticle(ctx context.Context, item scan.Pending) ArticleResult {
	a := item.Article
	ar := ArticleResult{Source: a.Source, Slug: a.Slug, Title: a.Title, State: StateExtracting}
	fail := func(err error) ArticleResult {
		ar.State = StateFailed
		ar.Err = err
		return ar
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fail(fmt.Errorf("waiting for rate limiter: %w", err))
		}
	}

	raw, err := p.strategy.Extract(ctx, a)
	if err != nil {
		return fail(err)
	}

	// An unparseable reply comes back empty and gets the fallback insight. A
	// parseable reply with nothing valid in it fails the article instead.
	if len(raw) == 0 {
		p.logger.Debug("no parseable insights, using fallback",
			zap.String("source", a.Source),
			zap.String("slug", a.Slug))
		raw = extract.Fallback(a)
	}
	insights := insight.Validate(raw)
	if len(insights) == 0 {
		return fail(fmt.Errorf("%d extracted items: %w", len(raw), ErrNoValidInsights))
	}
	ar.State = StateValidated
	ar.Insights = len(insights)

	file := insightfile.Build(a, insights, p.strategy.Name(), p.now())
	if err := insightfile.Write(item.InsightPath, file); err != nil {
		return fail(err)
	}
	ar.State = StatePersisted

	routed := p.router.Route(ctx, a, insights)
	ar.Routed = routed.Routed
	ar.State = StateRouted
	return ar
}

// Package extract turns an archived article into raw insight records. Two
// strategies exist: Remote asks a text-generation service, Pattern works
// offline with regular expressions and keyword votes. Both emit loosely typed
// records that insight.Validate normalizes.
package extract

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TobiSchelling/parainsights/internal/config"
	"github.com/TobiSchelling/parainsights/internal/insight"
	"github.com/TobiSchelling/parainsights/internal/llm"
	"github.com/TobiSchelling/parainsights/internal/scan"
)

// Extraction method names, recorded in the insight file.
const (
	MethodRemote  = "llm"
	MethodPattern = "pattern_based"
)

// ErrNoCredential is returned when the remote strategy is requested but no
// usable provider could be built.
var ErrNoCredential = errors.New("no credential for remote extraction")

// Strategy extracts raw insight records from one article. An error means the
// article could not be processed in this run; an empty result is not an error.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, a scan.Article) ([]any, error)
}

// New selects a strategy from cfg.Strategy. "auto" uses the remote strategy
// when provider is usable and falls back to the pattern strategy otherwise.
func New(cfg config.Extraction, provider llm.Provider, logger *zap.Logger) (Strategy, error) {
	usable := provider != nil && provider.IsConfigured()

	switch cfg.Strategy {
	case "pattern":
		return NewPattern(logger), nil
	case "remote":
		if !usable {
			return nil, ErrNoCredential
		}
		return NewRemote(provider, cfg.ContentWindow, logger), nil
	case "", "auto":
		if usable {
			return NewRemote(provider, cfg.ContentWindow, logger), nil
		}
		return NewPattern(logger), nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", cfg.Strategy)
	}
}

// Fallback is the single low-confidence record used when a remote reply
// contained no usable insights.
func Fallback(a scan.Article) []any {
	rec := insight.Insight{
		Insight:      "Key concepts from " + a.Title,
		Action:       "Review article content for strategies",
		ParaCategory: insight.Resources,
		ParaTarget:   insight.DefaultTarget,
		Rationale:    "Content from curated source",
		Confidence:   insight.ConfidenceLow,
	}
	return []any{rec.Record()}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

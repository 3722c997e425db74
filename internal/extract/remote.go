package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/parainsights/internal/insight"
	"github.com/TobiSchelling/parainsights/internal/llm"
	"github.com/TobiSchelling/parainsights/internal/logging"
	"github.com/TobiSchelling/parainsights/internal/scan"
)

// DefaultContentWindow is how many runes of article content go into a prompt.
const DefaultContentWindow = 5000

// Remote extracts insights by prompting a text-generation provider.
type Remote struct {
	provider      llm.Provider
	contentWindow int
	logger        *zap.Logger
}

// NewRemote creates the remote strategy. A non-positive contentWindow means
// DefaultContentWindow.
func NewRemote(provider llm.Provider, contentWindow int, logger *zap.Logger) *Remote {
	if contentWindow <= 0 {
		contentWindow = DefaultContentWindow
	}
	return &Remote{
		provider:      provider,
		contentWindow: contentWindow,
		logger:        logging.OrNop(logger),
	}
}

// Name implements Strategy.
func (r *Remote) Name() string { return MethodRemote }

// Extract sends one prompt per article. Transport failures are returned as
// errors; a reply without a JSON array yields an empty result.
func (r *Remote) Extract(ctx context.Context, a scan.Article) ([]any, error) {
	prompt := BuildPrompt(a, r.contentWindow)

	reply, err := r.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating insights for %s/%s: %w", a.Source, a.Slug, err)
	}

	raw := llm.ParseJSONArray(reply)
	if len(raw) == 0 {
		r.logger.Warn("reply contained no insight array",
			zap.String("source", a.Source),
			zap.String("slug", a.Slug),
			zap.Int("reply_len", len(reply)))
		return []any{}, nil
	}
	if len(raw) > insight.MaxInsights {
		raw = raw[:insight.MaxInsights]
	}
	return raw, nil
}

// BuildPrompt renders the extraction prompt for a, with content cut to window runes.
func BuildPrompt(a scan.Article, window int) string {
	var b strings.Builder
	b.WriteString("Extract 3-5 HIGH-QUALITY, ACTIONABLE insights from this article.\n\n")
	fmt.Fprintf(&b, "SOURCE: %s\nTITLE: %s\nURL: %s\n\n", a.Source, a.Title, a.URL)
	b.WriteString("CONTENT:\n")
	b.WriteString(truncate(a.Content, window))
	b.WriteString("\n\nEXTRACTION RULES:\n")
	b.WriteString("1. SYNTHESIZE insights - don't extract random sentence fragments\n")
	b.WriteString("2. Each insight MUST be actionable (what to DO with it)\n")
	b.WriteString("3. Detect explicit frameworks, methods, or mental models mentioned\n")
	b.WriteString("4. Categorize each insight into PARA:\n")
	for _, c := range insight.Categories {
		fmt.Fprintf(&b, "   - %s: %s\n", c, strings.Join(insight.Targets(c), ", "))
	}
	b.WriteString("\nOUTPUT ONLY VALID JSON ARRAY - no other text:\n")
	b.WriteString(`[{"insight": "Clear insight statement", "action": "Specific action to take", "framework": "Framework name or null", "para_category": "projects|areas|resources", "para_target": "specific subcategory", "rationale": "Why this matters", "confidence": "high|medium|low"}]`)
	return b.String()
}

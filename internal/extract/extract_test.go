package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TobiSchelling/parainsights/internal/config"
	"github.com/TobiSchelling/parainsights/internal/insight"
	"github.com/TobiSchelling/parainsights/internal/scan"
)

type mockProvider struct {
	response   string
	err        error
	configured bool
	prompts    []string
}

func (m *mockProvider) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return m.configured }

var focusArticle = scan.Article{
	Source: "blog-x",
	Slug:   "a1",
	Title:  "Focus Blocks",
	URL:    "https://blog-x.example/a1",
	Content: "Try batching your work into 90-minute focus blocks to protect deep attention. " +
		"Executive coaching clients who adopt this habit report steadier energy across the week. " +
		"Start each block with a single written intention.",
}

func TestNewSelectsStrategy(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := config.Default().Extraction
	keyed := &mockProvider{configured: true}

	s, err := New(cfg, keyed, logger)
	require.NoError(t, err)
	assert.Equal(t, MethodRemote, s.Name(), "auto with a credential uses the remote strategy")

	s, err = New(cfg, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, MethodPattern, s.Name(), "auto without a credential falls back to patterns")

	s, err = New(cfg, &mockProvider{}, logger)
	require.NoError(t, err)
	assert.Equal(t, MethodPattern, s.Name())

	cfg.Strategy = "pattern"
	s, err = New(cfg, keyed, logger)
	require.NoError(t, err)
	assert.Equal(t, MethodPattern, s.Name())

	cfg.Strategy = "remote"
	_, err = New(cfg, nil, logger)
	assert.ErrorIs(t, err, ErrNoCredential)

	cfg.Strategy = "magic"
	_, err = New(cfg, keyed, logger)
	assert.Error(t, err)
}

func TestRemoteExtractParsesReplyWithProse(t *testing.T) {
	p := &mockProvider{
		configured: true,
		response: "Here you go:\n" +
			`[{"insight": "Protect 90-minute focus blocks", "action": "Block mornings", "framework": null, ` +
			`"para_category": "areas", "para_target": "ef-coaching", "rationale": "Deep work", "confidence": "high"}]` +
			"\nHope this helps!",
	}
	r := NewRemote(p, 0, zaptest.NewLogger(t))

	raw, err := r.Extract(context.Background(), focusArticle)
	require.NoError(t, err)
	require.Len(t, raw, 1)

	got := insight.Validate(raw)
	require.Len(t, got, 1)
	assert.Equal(t, "Protect 90-minute focus blocks", got[0].Insight)
	assert.Equal(t, insight.Areas, got[0].ParaCategory)
	assert.Equal(t, "ef-coaching", got[0].ParaTarget)
	assert.Nil(t, got[0].Framework)
}

func TestRemoteExtractCapsResults(t *testing.T) {
	items := make([]string, 8)
	for i := range items {
		items[i] = `{"insight": "item"}`
	}
	p := &mockProvider{configured: true, response: "[" + strings.Join(items, ",") + "]"}

	raw, err := NewRemote(p, 0, nil).Extract(context.Background(), focusArticle)
	require.NoError(t, err)
	assert.Len(t, raw, insight.MaxInsights)
}

func TestRemoteExtractConversationalReply(t *testing.T) {
	p := &mockProvider{configured: true, response: "I read the article and found it quite inspiring overall."}

	raw, err := NewRemote(p, 0, zaptest.NewLogger(t)).Extract(context.Background(), focusArticle)
	require.NoError(t, err)
	assert.Empty(t, raw)
	assert.Empty(t, insight.Validate(raw))
}

func TestRemoteExtractProviderError(t *testing.T) {
	p := &mockProvider{configured: true, err: errors.New("connection refused")}

	_, err := NewRemote(p, 0, nil).Extract(context.Background(), focusArticle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blog-x/a1")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBuildPrompt(t *testing.T) {
	a := focusArticle
	a.Content = strings.Repeat("é", 50)

	prompt := BuildPrompt(a, 10)
	assert.Contains(t, prompt, "SOURCE: blog-x")
	assert.Contains(t, prompt, "TITLE: Focus Blocks")
	assert.Contains(t, prompt, "URL: https://blog-x.example/a1")
	assert.Contains(t, prompt, "CONTENT:\n"+strings.Repeat("é", 10)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("é", 11))
	assert.Contains(t, prompt, "- areas: ef-coaching, ai-tools, business-strategy")
	assert.Contains(t, prompt, "OUTPUT ONLY VALID JSON ARRAY")
}

func TestFallback(t *testing.T) {
	got := insight.Validate(Fallback(focusArticle))
	require.Len(t, got, 1)
	assert.Equal(t, "Key concepts from Focus Blocks", got[0].Insight)
	assert.Equal(t, insight.ConfidenceLow, got[0].Confidence)
	assert.Equal(t, insight.Resources, got[0].ParaCategory)
	assert.Equal(t, "best-practices", got[0].ParaTarget)
}

func TestPatternExtractVerbLedInsight(t *testing.T) {
	raw, err := NewPattern(zaptest.NewLogger(t)).Extract(context.Background(), focusArticle)
	require.NoError(t, err)

	got := insight.Validate(raw)
	require.GreaterOrEqual(t, len(got), 2)
	require.LessOrEqual(t, len(got), insight.MaxInsights)

	first := got[0]
	assert.True(t, strings.HasPrefix(first.Insight, "Try batching your work into 90-minute focus blocks"), first.Insight)
	assert.Equal(t, insight.Areas, first.ParaCategory)
	assert.Equal(t, "ef-coaching", first.ParaTarget)
	assert.Equal(t, insight.ConfidenceMedium, first.Confidence)
	assert.Equal(t, "Use this approach in your work", first.Action)
	assert.Equal(t, "Extracted from blog-x article on Focus Blocks", first.Rationale)

	assert.Equal(t, "Apply this approach in your work", got[1].Action)

	seen := make(map[string]bool)
	for _, ins := range got {
		assert.False(t, seen[ins.Insight], "duplicate candidate %q", ins.Insight)
		seen[ins.Insight] = true
	}
}

func TestPatternExtractGenericFallback(t *testing.T) {
	a := scan.Article{
		Source:  "blog-y",
		Slug:    "quiet",
		Title:   "A Quiet Afternoon By The Lake With Nothing Much Happening At All Really",
		Content: strings.Repeat("The lake was calm and the sky was grey. ", 5),
	}

	raw, err := NewPattern(nil).Extract(context.Background(), a)
	require.NoError(t, err)

	got := insight.Validate(raw)
	require.Len(t, got, 3)
	assert.Equal(t, "Key concept from '"+truncate(a.Title, 60)+"...'", got[0].Insight)
	assert.Equal(t, "Review strategies discussed in this blog-y article", got[1].Insight)
	assert.Equal(t, "Consider implications for your workflow", got[2].Insight)
	for _, ins := range got {
		assert.Equal(t, insight.ConfidenceLow, ins.Confidence)
	}
}

func TestPatternExtractHTMLListsAndFrameworks(t *testing.T) {
	a := scan.Article{
		Source: "every",
		Slug:   "systems",
		Title:  "Working Systems",
		Content: `<html><body><h1>Working Systems</h1>
<p>My favourite tool is the Eisenhower Matrix method for triage.</p>
<ul>
<li>Write tomorrow's three priorities before closing the laptop</li>
<li>Keep a running <b>done list</b> next to your task list</li>
</ul>
<p>Remember the Pareto Principle when choosing what to cut.</p>
</body></html>`,
	}

	raw, err := NewPattern(nil).Extract(context.Background(), a)
	require.NoError(t, err)
	got := insight.Validate(raw)
	require.GreaterOrEqual(t, len(got), 2)

	assert.Equal(t, "Write tomorrow's three priorities before closing the laptop", got[0].Insight)
	assert.Equal(t, "Keep a running done list next to your task list", got[1].Insight)
	for _, ins := range got {
		assert.NotContains(t, ins.Insight, "<")
	}

	require.NotNil(t, got[0].Framework)
	assert.Equal(t, "Eisenhower Matrix", *got[0].Framework)
	require.NotNil(t, got[1].Framework)
	assert.Equal(t, "Pareto Principle", *got[1].Framework)
}

func TestFindFrameworks(t *testing.T) {
	text := "We use a framework called Jobs To Be Done. The Getting Things Done system helps. " +
		"Apply the Pareto Principle and Parkinson Law daily."
	assert.Equal(t, []string{"Jobs To Be Done", "Getting Things Done", "Pareto Principle"}, findFrameworks(text))
	assert.Empty(t, findFrameworks("nothing capitalised here at all"))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "héllo", truncate("héllo", 10))
	assert.Equal(t, "héllo", truncate("héllo", 0))
}

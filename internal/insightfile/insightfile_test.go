package insightfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/parainsights/internal/insight"
	"github.com/TobiSchelling/parainsights/internal/scan"
)

func strPtr(s string) *string { return &s }

var article = scan.Article{
	Source: "blog-x",
	Slug:   "a1",
	Title:  "Focus Blocks",
	URL:    "https://blog-x.example/a1",
}

func sampleInsights() []insight.Insight {
	return []insight.Insight{
		{Insight: "Batch work into 90-minute blocks", ParaCategory: insight.Areas, ParaTarget: "ef-coaching", Framework: strPtr("Ultradian Rhythm"), Confidence: "high"},
		{Insight: "Keep a done list", ParaCategory: insight.Resources, ParaTarget: "templates", Confidence: "medium"},
		{Insight: "Review blocks weekly", ParaCategory: insight.Areas, ParaTarget: "ef-coaching", Framework: strPtr("Ultradian Rhythm"), Confidence: "medium"},
		{Insight: "Use the Pomodoro Method for warmups", ParaCategory: insight.Resources, ParaTarget: "frameworks", Framework: strPtr("Pomodoro Method"), Confidence: "low"},
	}
}

func TestBuildAggregates(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	f := Build(article, sampleInsights(), "llm", now)

	assert.Equal(t, 4, f.InsightCount)
	assert.Equal(t, []string{"Ultradian Rhythm", "Pomodoro Method"}, f.FrameworksDetected)
	assert.Equal(t, Distribution{Areas: 2, Resources: 2}, f.ParaDistribution)
	assert.Equal(t, "2026-10-19T09:30:00Z", f.ExtractedAt)
	assert.Equal(t, "llm", f.ExtractionMethod)
	assert.Equal(t, "blog-x", f.SourceName)
	assert.Equal(t, "a1", f.Slug)
	assert.NoError(t, f.Consistent())
}

func TestBuildEmpty(t *testing.T) {
	f := Build(article, nil, "pattern_based", time.Now())
	assert.NotNil(t, f.Insights)
	assert.NotNil(t, f.FrameworksDetected)
	assert.Equal(t, 0, f.InsightCount)
	assert.NoError(t, f.Consistent())
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blog-x", "insights", "a1.json")
	f := Build(article, sampleInsights(), "llm", time.Now())

	require.NoError(t, Write(path, f), "write must create intermediate directories")

	got, err := Read(path)
	require.NoError(t, err)
	require.NoError(t, got.Consistent())
	assert.Equal(t, got.InsightCount, len(got.Insights))
	assert.Equal(t, got.InsightCount, got.ParaDistribution.Total())
	assert.Equal(t, f.Insights, got.Insights)
	assert.Equal(t, f.FrameworksDetected, got.FrameworksDetected)

	// No temp files are left next to the marker.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a1.json", entries[0].Name())
}

func TestWriteNullFramework(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a1.json")
	f := Build(article, []insight.Insight{{Insight: "x", ParaCategory: insight.Resources, ParaTarget: "best-practices"}}, "llm", time.Now())
	require.NoError(t, Write(path, f))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"framework": null`)
}

func TestConsistentDetectsTampering(t *testing.T) {
	f := Build(article, sampleInsights(), "llm", time.Now())

	f.InsightCount = 3
	assert.Error(t, f.Consistent())

	f.InsightCount = 4
	f.ParaDistribution.Projects = 1
	assert.Error(t, f.Consistent())
}

func TestWriteFailsWhenDirectoryIsAFile(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "insights")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	err := Write(filepath.Join(blocker, "a1.json"), Build(article, nil, "llm", time.Now()))
	assert.Error(t, err)
}

func TestReadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	_, err := Read(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"insights": [`), 0o644))
	_, err = Read(corrupt)
	assert.Error(t, err)
}

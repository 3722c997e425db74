// Package insightfile writes and reads the per-article insight JSON document.
// The file doubles as the scanner's completion marker, so it is always
// written atomically.
package insightfile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/TobiSchelling/parainsights/internal/atomicfile"
	"github.com/TobiSchelling/parainsights/internal/insight"
	"github.com/TobiSchelling/parainsights/internal/scan"
)

// Distribution counts insights per PARA category.
type Distribution struct {
	Projects  int `json:"projects"`
	Areas     int `json:"areas"`
	Resources int `json:"resources"`
}

// Total returns the sum over all categories.
func (d Distribution) Total() int {
	return d.Projects + d.Areas + d.Resources
}

// File is the insight document for one article.
type File struct {
	SourceName         string            `json:"source_name"`
	SourceTitle        string            `json:"source_title"`
	SourceURL          string            `json:"source_url"`
	Slug               string            `json:"slug"`
	Insights           []insight.Insight `json:"insights"`
	InsightCount       int               `json:"insight_count"`
	FrameworksDetected []string          `json:"frameworks_detected"`
	ParaDistribution   Distribution      `json:"para_distribution"`
	ExtractedAt        string            `json:"extracted_at"`
	ExtractionMethod   string            `json:"extraction_method"`
}

// Build assembles the document and its aggregates.
func Build(a scan.Article, insights []insight.Insight, method string, now time.Time) File {
	f := File{
		SourceName:         a.Source,
		SourceTitle:        a.Title,
		SourceURL:          a.URL,
		Slug:               a.Slug,
		Insights:           insights,
		InsightCount:       len(insights),
		FrameworksDetected: []string{},
		ExtractedAt:        now.Format(time.RFC3339),
		ExtractionMethod:   method,
	}
	if f.Insights == nil {
		f.Insights = []insight.Insight{}
	}

	seen := make(map[string]bool)
	for _, ins := range insights {
		if fw := ins.FrameworkName(); fw != "" && !seen[fw] {
			seen[fw] = true
			f.FrameworksDetected = append(f.FrameworksDetected, fw)
		}
		switch ins.ParaCategory {
		case insight.Projects:
			f.ParaDistribution.Projects++
		case insight.Areas:
			f.ParaDistribution.Areas++
		case insight.Resources:
			f.ParaDistribution.Resources++
		}
	}
	return f
}

// Consistent reports whether the stored aggregates match the insights array.
func (f *File) Consistent() error {
	if f.InsightCount != len(f.Insights) {
		return fmt.Errorf("insight_count %d does not match %d insights", f.InsightCount, len(f.Insights))
	}
	if total := f.ParaDistribution.Total(); total != f.InsightCount {
		return fmt.Errorf("para_distribution sums to %d, want %d", total, f.InsightCount)
	}
	return nil
}

// Write stores f at path, creating parent directories. The document appears
// at path only once it is fully written.
func Write(path string, f File) error {
	if err := atomicfile.WriteJSON(path, f); err != nil {
		return fmt.Errorf("writing insight file: %w", err)
	}
	return nil
}

// Read loads an insight file.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading insight file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding insight file: %w", err)
	}
	return &f, nil
}

// Package scan walks the per-source archive tree and finds articles that
// still need insight extraction.
//
// The tree looks like:
//
//	<root>/<source>/archive/<slug>.json   archived article (input)
//	<root>/<source>/insights/<slug>.json  insight file (completion marker)
//
// An archive entry is pending exactly when its same-named insight file is
// missing. Content is not hashed, so edits to an archived article after its
// insights were written are not picked up.
package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/TobiSchelling/parainsights/internal/logging"
)

const (
	// DefaultMinContentLength is the rune count below which an article is
	// not worth extracting from.
	DefaultMinContentLength = 100

	ArchiveDir  = "archive"
	InsightsDir = "insights"
)

// ArchiveEntry is the on-disk format of one archived article.
type ArchiveEntry struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	ContentText string `json:"content_text"`
	Source      string `json:"source,omitempty"`
	ArchivedAt  string `json:"archived_at,omitempty"`
}

// Article is an archived article identified by (Source, Slug).
type Article struct {
	Source  string
	Slug    string
	Title   string
	URL     string
	Content string
}

// Pending is an article awaiting extraction together with its file paths.
type Pending struct {
	Article     Article
	ArchivePath string
	InsightPath string
}

// SourceSummary counts archive entries for one source.
type SourceSummary struct {
	Source     string
	Archived   int
	Processed  int
	Pending    int
	TooShort   int
	Unreadable int
}

// Scanner finds unprocessed archive entries under a root directory.
type Scanner struct {
	root             string
	minContentLength int
	logger           *zap.Logger
}

// New creates a scanner. A non-positive minContentLength means DefaultMinContentLength.
func New(root string, minContentLength int, logger *zap.Logger) *Scanner {
	if minContentLength <= 0 {
		minContentLength = DefaultMinContentLength
	}
	return &Scanner{
		root:             root,
		minContentLength: minContentLength,
		logger:           logging.OrNop(logger),
	}
}

// Root returns the directory being scanned.
func (s *Scanner) Root() string {
	return s.root
}

// Scan returns pending articles in lexical source, then file, order.
func (s *Scanner) Scan() ([]Pending, error) {
	var pending []Pending
	_, err := s.walk(func(p Pending) {
		pending = append(pending, p)
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// Summarize counts archive state per source without collecting articles.
func (s *Scanner) Summarize() ([]SourceSummary, error) {
	return s.walk(nil)
}

func (s *Scanner) walk(visit func(Pending)) ([]SourceSummary, error) {
	sources, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading sources dir: %w", err)
	}

	var summaries []SourceSummary
	for _, src := range sources {
		if !src.IsDir() {
			continue
		}
		sourceDir := filepath.Join(s.root, src.Name())
		archiveDir := filepath.Join(sourceDir, ArchiveDir)
		insightsDir := filepath.Join(sourceDir, InsightsDir)

		files, err := os.ReadDir(archiveDir)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("unreadable archive dir", zap.String("dir", archiveDir), zap.Error(err))
			}
			continue
		}

		sum := SourceSummary{Source: src.Name()}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
				continue
			}
			sum.Archived++

			insightPath := filepath.Join(insightsDir, f.Name())
			if _, err := os.Stat(insightPath); err == nil {
				sum.Processed++
				continue
			}

			archivePath := filepath.Join(archiveDir, f.Name())
			article, err := readArticle(archivePath, src.Name())
			if err != nil {
				s.logger.Warn("skipping unreadable archive entry", zap.String("path", archivePath), zap.Error(err))
				sum.Unreadable++
				continue
			}
			if utf8.RuneCountInString(article.Content) < s.minContentLength {
				s.logger.Debug("skipping short article", zap.String("path", archivePath))
				sum.TooShort++
				continue
			}

			sum.Pending++
			if visit != nil {
				visit(Pending{Article: article, ArchivePath: archivePath, InsightPath: insightPath})
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

func readArticle(path, source string) (Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Article{}, err
	}
	var entry ArchiveEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Article{}, fmt.Errorf("decoding archive entry: %w", err)
	}

	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = "Untitled"
	}
	return Article{
		Source:  source,
		Slug:    strings.TrimSuffix(filepath.Base(path), ".json"),
		Title:   title,
		URL:     entry.URL,
		Content: entry.ContentText,
	}, nil
}

// Package archive fills the per-source archive tree that the insight pipeline
// reads. Entries come from RSS/Atom feeds or single pages; page text is
// extracted with readability.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/TobiSchelling/parainsights/internal/atomicfile"
	"github.com/TobiSchelling/parainsights/internal/config"
	"github.com/TobiSchelling/parainsights/internal/logging"
	"github.com/TobiSchelling/parainsights/internal/scan"
)

const (
	// DefaultMaxPerFeed caps how many feed items are considered per feed.
	DefaultMaxPerFeed = 20
	// DefaultFetchTimeout bounds a single page or feed request.
	DefaultFetchTimeout = 15 * time.Second

	userAgent = "parainsights/1.0 (article archiver)"
)

// ErrNoContent is returned when neither the page nor the feed item had
// extractable text.
var ErrNoContent = errors.New("no extractable content")

// Result holds the results of an archive run.
type Result struct {
	Found    int
	Archived int
	Existing int
	Failed   int
}

func (r *Result) add(o Result) {
	r.Found += o.Found
	r.Archived += o.Archived
	r.Existing += o.Existing
	r.Failed += o.Failed
}

// Archiver writes archive entries under root.
type Archiver struct {
	root       string
	maxPerFeed int
	client     *http.Client
	parser     *gofeed.Parser
	now        func() time.Time
	logger     *zap.Logger
}

// New creates an archiver. Zero values select the defaults.
func New(root string, maxPerFeed int, timeout time.Duration, logger *zap.Logger) *Archiver {
	if maxPerFeed <= 0 {
		maxPerFeed = DefaultMaxPerFeed
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	return &Archiver{
		root:       root,
		maxPerFeed: maxPerFeed,
		client:     client,
		parser:     parser,
		now:        time.Now,
		logger:     logging.OrNop(logger),
	}
}

// ArchiveFeeds archives every configured feed. A feed that cannot be parsed
// counts as one failure and the rest continue.
func (a *Archiver) ArchiveFeeds(ctx context.Context, feeds []config.Feed) Result {
	var total Result
	for _, f := range feeds {
		if ctx.Err() != nil {
			break
		}
		source := f.Source
		if source == "" {
			source = sourceFromURL(f.URL)
		}
		r, err := a.ArchiveFeed(ctx, source, f.URL)
		if err != nil {
			a.logger.Warn("failed to parse feed", zap.String("url", f.URL), zap.Error(err))
			total.Failed++
			continue
		}
		total.add(r)
	}
	return total
}

// ArchiveFeed archives up to maxPerFeed items from one feed. Items already in
// the archive are left untouched. After an HTTP error from a host the remaining
// items from that host are skipped.
func (a *Archiver) ArchiveFeed(ctx context.Context, source, feedURL string) (Result, error) {
	var r Result
	if err := validSource(source); err != nil {
		return r, err
	}

	feed, err := a.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return r, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	failedHosts := make(map[string]bool)
	for _, item := range feed.Items {
		if r.Found >= a.maxPerFeed || ctx.Err() != nil {
			break
		}
		itemURL := item.Link
		if itemURL == "" {
			itemURL = item.GUID
		}
		title := strings.TrimSpace(item.Title)
		if itemURL == "" || title == "" {
			continue
		}
		r.Found++

		path := a.entryPath(source, Slugify(title))
		if exists(path) {
			r.Existing++
			continue
		}

		host := hostOf(itemURL)
		var content string
		if !failedHosts[host] {
			page, err := a.fetchPage(ctx, itemURL)
			var httpErr *HTTPError
			switch {
			case errors.As(err, &httpErr):
				failedHosts[host] = true
				a.logger.Warn("HTTP error, skipping remaining items from host",
					zap.String("url", itemURL), zap.String("host", host), zap.Error(err))
			case err != nil:
				a.logger.Debug("fetch failed", zap.String("url", itemURL), zap.Error(err))
			default:
				content = page.Text
			}
		}
		if content == "" {
			content = feedItemText(item)
		}
		if content == "" {
			a.logger.Warn("no extractable content", zap.String("url", itemURL))
			r.Failed++
			continue
		}

		entry := scan.ArchiveEntry{
			Title:       title,
			URL:         itemURL,
			ContentText: content,
			Source:      source,
			ArchivedAt:  a.now().UTC().Format(time.RFC3339),
		}
		if err := atomicfile.WriteJSON(path, entry); err != nil {
			a.logger.Warn("writing archive entry", zap.String("path", path), zap.Error(err))
			r.Failed++
			continue
		}
		r.Archived++
		a.logger.Debug("archived", zap.String("source", source), zap.String("title", title))
	}

	a.logger.Info("archived feed",
		zap.String("source", source),
		zap.Int("found", r.Found),
		zap.Int("archived", r.Archived),
		zap.Int("existing", r.Existing),
		zap.Int("failed", r.Failed))
	return r, nil
}

// ArchiveURL archives a single page and returns the entry path. An existing
// entry with the same slug is kept and its path returned.
func (a *Archiver) ArchiveURL(ctx context.Context, source, pageURL string) (string, error) {
	if err := validSource(source); err != nil {
		return "", err
	}

	page, err := a.fetchPage(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if page.Text == "" {
		return "", fmt.Errorf("%s: %w", pageURL, ErrNoContent)
	}

	title := page.Title
	if title == "" {
		title = pageURL
	}
	path := a.entryPath(source, Slugify(title))
	if exists(path) {
		return path, nil
	}

	entry := scan.ArchiveEntry{
		Title:       title,
		URL:         pageURL,
		ContentText: page.Text,
		Source:      source,
		ArchivedAt:  a.now().UTC().Format(time.RFC3339),
	}
	if err := atomicfile.WriteJSON(path, entry); err != nil {
		return "", fmt.Errorf("writing archive entry: %w", err)
	}
	return path, nil
}

func (a *Archiver) entryPath(source, slug string) string {
	return filepath.Join(a.root, source, scan.ArchiveDir, slug+".json")
}

func validSource(source string) error {
	if source == "" || source == "." || source == ".." || strings.ContainsAny(source, `/\`) {
		return fmt.Errorf("invalid source name %q", source)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// sourceFromURL derives a source name from a feed host, e.g.
// https://blog.example.com/rss becomes "example".
func sourceFromURL(feedURL string) string {
	host := hostOf(feedURL)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		host = parts[len(parts)-2]
	}
	if slug := Slugify(host); slug != "untitled" {
		return slug
	}
	return "feed"
}

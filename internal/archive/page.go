package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

// minPageText is the shortest readability output accepted as article text.
const minPageText = 100

// maxPageBytes bounds how much of a response body is read.
const maxPageBytes = 10 << 20

// HTTPError is a non-success status from a page fetch.
type HTTPError struct {
	URL  string
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Page is the extracted form of a fetched page.
type Page struct {
	Title string
	Text  string
}

func (a *Archiver) fetchPage(ctx context.Context, pageURL string) (*Page, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{URL: pageURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pageURL, err)
	}

	page := &Page{Title: pageTitle(body)}
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); len(text) > minPageText {
			page.Text = text
		}
	}
	return page, nil
}

// pageTitle prefers og:title and falls back to <title>.
func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if og = collapse(og); og != "" {
			return og
		}
	}
	return collapse(doc.Find("title").First().Text())
}

// feedItemText returns the item's content or description as plain text.
func feedItemText(item *gofeed.Item) string {
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	if raw == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapse(raw)
	}
	doc.Find("script, style").Remove()
	doc.Find("p, div, li, br, h1, h2, h3, h4, blockquote").AppendHtml("\n")
	return strings.TrimSpace(doc.Text())
}

var (
	nonSlug = regexp.MustCompile(`[^a-z0-9]+`)
	spaces  = regexp.MustCompile(`\s+`)
)

// maxSlugLen keeps file names well under filesystem limits.
const maxSlugLen = 80

// Slugify turns a title into a file-name-safe slug.
func Slugify(title string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "untitled"
	}
	return slug
}

func collapse(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/TobiSchelling/parainsights/internal/insight"
	"github.com/TobiSchelling/parainsights/internal/logging"
	"github.com/TobiSchelling/parainsights/internal/scan"
)

const (
	// maxPatternContent bounds how much of an article the regexes scan.
	maxPatternContent = 20000

	maxFrameworks     = 3
	minCandidateLen   = 20
	maxListItemLen    = 200
	maxInsightLen     = 300
	minSentenceLen    = 30
	maxSentenceLen    = 200
	maxNumberedItems  = 5
	minUsefulInsights = 2
)

// pattern is a compiled expression whose capture group holds the candidate text.
type pattern struct {
	name  string
	regex *regexp.Regexp
	group int
}

var (
	frameworkPatterns = []pattern{
		{"named", regexp.MustCompile(`(?i)\b(?:framework|model|method|system|approach)\s+(?:called|named|known\s+as)\s+["']?([^"'.,;\n]{4,60})`), 1},
		{"possessive", regexp.MustCompile(`\b(?:[Tt]he|[Mm]y)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,4})\s+(?i:method|framework|system|approach)\b`), 1},
		{"titled", regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3}\s+(?:Principle|Rule|Law|Method|Framework))\b`), 1},
	}

	actionPatterns = []pattern{
		{"verb", regexp.MustCompile(`(?i)\b((?:try|start|use|implement|adopt|apply|build|create)\s+[^,.;]{10,100})`), 1},
		{"step", regexp.MustCompile(`(?i)\b(?:step|phase|stage)\s+\d+[:\s]+([^,.;]{10,100})`), 1},
		{"sequence", regexp.MustCompile(`(?i)\b(?:first|next|then|finally)[,:\s]+([^,.;]{10,100})`), 1},
		{"how-to", regexp.MustCompile(`(?i)\b(?:how\s+to|what\s+you\s+should|what\s+to)[,:]?\s+([^,.;]{10,150})`), 1},
	}

	principlePatterns = []pattern{
		{"principle", regexp.MustCompile(`(?i)\b(?:key\s+)?principle[:\s]+([^,.;]{10,200})`), 1},
		{"note", regexp.MustCompile(`(?i)\b(?:remember|note)[:\s]+([^,.;]{10,200})`), 1},
		{"key", regexp.MustCompile(`(?i)\b(?:the\s+key\s+is|what\s+matters)[,:]?\s+([^,.;]{10,200})`), 1},
	}

	numberedItem   = regexp.MustCompile(`(?m)(?:^|\s)\d{1,3}[.)]\s+([^\n]{20,200})`)
	sentenceBreak  = regexp.MustCompile(`[.!?]+`)
	actionVerb     = regexp.MustCompile(`(?i)\b(?:use|try|implement|adopt|build|create|start|apply|focus|prioritize)`)
	htmlTag        = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	spaceRun       = regexp.MustCompile(`\s+`)
	rotatingVerbs  = []string{"Use", "Apply", "Implement", "Try", "Explore", "Review"}
	blockSelectors = "br, p, div, li, ol, ul, h1, h2, h3, h4, h5, h6, tr, blockquote, pre, section, article"
)

// Pattern extracts insights offline. HTML content is parsed with goquery so
// list items become candidates and tags never leak into insight text.
type Pattern struct {
	logger *zap.Logger
}

// NewPattern creates the offline strategy.
func NewPattern(logger *zap.Logger) *Pattern {
	return &Pattern{logger: logging.OrNop(logger)}
}

// Name implements Strategy.
func (p *Pattern) Name() string { return MethodPattern }

// Extract never fails; articles with too little structure get a generic
// three-item low-confidence set instead.
func (p *Pattern) Extract(_ context.Context, a scan.Article) ([]any, error) {
	text, listItems := plainText(truncate(a.Content, maxPatternContent))

	candidates := findCandidates(text, listItems)
	confidence := insight.ConfidenceMedium
	if len(candidates) < minUsefulInsights {
		p.logger.Debug("too few pattern candidates, using generic insights",
			zap.String("source", a.Source),
			zap.String("slug", a.Slug),
			zap.Int("candidates", len(candidates)))
		candidates = genericInsights(a)
		confidence = insight.ConfidenceLow
	}

	frameworks := findFrameworks(text)
	rationale := fmt.Sprintf("Extracted from %s article on %s", a.Source, truncate(a.Title, 50))

	records := make([]any, 0, len(candidates))
	for i, c := range candidates {
		category, target := insight.Classify(a.Title, text, c)
		rec := insight.Insight{
			Insight:      truncate(c, maxInsightLen),
			Action:       rotatingVerbs[i%len(rotatingVerbs)] + " this approach in your work",
			ParaCategory: category,
			ParaTarget:   target,
			Rationale:    rationale,
			Confidence:   confidence,
		}
		if i < len(frameworks) {
			fw := frameworks[i]
			rec.Framework = &fw
		}
		records = append(records, rec.Record())
	}
	return records, nil
}

// plainText returns content as plain text plus the text of any <li> items.
// Content without markup is returned unchanged.
func plainText(content string) (string, []string) {
	if !htmlTag.MatchString(content) {
		return content, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content, nil
	}

	doc.Find("script, style, noscript").Remove()

	var items []string
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		if item := clean(s.Text()); item != "" {
			items = append(items, item)
		}
	})

	// Keep block boundaries so sentences and numbered items don't run together.
	doc.Find(blockSelectors).AppendHtml("\n")
	return doc.Text(), items
}

// findCandidates collects candidate insight texts in priority order: numbered
// and list items, action phrases, principles (only while fewer than three
// candidates exist) and finally sentences that contain an action verb.
func findCandidates(text string, listItems []string) []string {
	c := &candidateSet{seen: make(map[string]bool)}

	numbered := 0
	for _, item := range listItems {
		if numbered == maxNumberedItems {
			break
		}
		if c.add(truncate(item, maxListItemLen)) {
			numbered++
		}
	}
	for _, m := range numberedItem.FindAllStringSubmatch(text, -1) {
		if numbered == maxNumberedItems {
			break
		}
		if c.add(m[1]) {
			numbered++
		}
	}

	c.addMatches(text, actionPatterns)
	if len(c.items) < 3 {
		c.addMatches(text, principlePatterns)
	}

	for _, sent := range sentenceBreak.Split(text, -1) {
		if c.full() {
			break
		}
		sent = clean(sent)
		n := utf8.RuneCountInString(sent)
		if n <= minSentenceLen || n >= maxSentenceLen || !actionVerb.MatchString(sent) {
			continue
		}
		c.add(sent)
	}
	return c.items
}

type candidateSet struct {
	items []string
	seen  map[string]bool
}

func (c *candidateSet) full() bool {
	return len(c.items) >= insight.MaxInsights
}

// add appends s when there is room, it is long enough and it is new.
func (c *candidateSet) add(s string) bool {
	s = clean(s)
	if c.full() || utf8.RuneCountInString(s) <= minCandidateLen || c.seen[s] {
		return false
	}
	c.seen[s] = true
	c.items = append(c.items, s)
	return true
}

func (c *candidateSet) addMatches(text string, patterns []pattern) {
	for _, p := range patterns {
		for _, m := range p.regex.FindAllStringSubmatch(text, -1) {
			if c.full() {
				return
			}
			c.add(m[p.group])
		}
	}
}

// findFrameworks returns up to three distinct framework names.
func findFrameworks(text string) []string {
	var found []string
	seen := make(map[string]bool)
	for _, p := range frameworkPatterns {
		for _, m := range p.regex.FindAllStringSubmatch(text, -1) {
			name := clean(m[p.group])
			if len(name) <= 3 || seen[name] {
				continue
			}
			seen[name] = true
			found = append(found, name)
			if len(found) == maxFrameworks {
				return found
			}
		}
	}
	return found
}

func genericInsights(a scan.Article) []string {
	return []string{
		fmt.Sprintf("Key concept from '%s...'", truncate(a.Title, 60)),
		fmt.Sprintf("Review strategies discussed in this %s article", a.Source),
		"Consider implications for your workflow",
	}
}

// clean collapses whitespace runs and trims.
func clean(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

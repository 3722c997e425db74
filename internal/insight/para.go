package insight

import (
	"regexp"
	"strings"
)

// Category is a top-level PARA bucket.
type Category string

const (
	Projects  Category = "projects"
	Areas     Category = "areas"
	Resources Category = "resources"
)

// Categories lists the PARA buckets in vote tie-break order.
var Categories = []Category{Projects, Areas, Resources}

// ParseCategory normalizes s and reports whether it names a PARA bucket.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Subcategory is a filing target inside a PARA bucket together with the
// keywords that vote for it.
type Subcategory struct {
	Name     string
	Keywords []string
}

// Taxonomy is the fixed target vocabulary per category, in tie-break order.
var Taxonomy = map[Category][]Subcategory{
	Projects: {
		{Name: "ceramics", Keywords: []string{"ceramic", "clay", "pottery", "glaze", "kiln", "firing", "handmade"}},
		{Name: "stickers", Keywords: []string{"sticker", "design", "illustration", "vector", "print"}},
		{Name: "natural-capture", Keywords: []string{"photo", "camera", "nature", "capture", "image", "wildlife"}},
	},
	Areas: {
		{Name: "ef-coaching", Keywords: []string{"coach", "coaching", "executive", "leadership", "growth", "development"}},
		{Name: "ai-tools", Keywords: []string{"ai", "artificial intelligence", "llm", "chatgpt", "claude", "automation", "ml", "machine learning"}},
		{Name: "business-strategy", Keywords: []string{"strategy", "business", "startup", "founder", "growth", "revenue", "market"}},
	},
	Resources: {
		{Name: "frameworks", Keywords: []string{"framework", "model", "mental model", "system", "methodology"}},
		{Name: "templates", Keywords: []string{"template", "prompt", "checklist", "worksheet", "toolkit"}},
		{Name: "best-practices", Keywords: []string{"best practice", "recommendation", "advice", "tip", "lesson learned"}},
	},
}

// Targets returns the subcategory names for c.
func Targets(c Category) []string {
	subs := Taxonomy[c]
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.Name
	}
	return names
}

// keywordPatterns matches each keyword at a word start, so "coach" hits
// "coaching" but "ai" does not hit "said".
var keywordPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp)
	for _, subs := range Taxonomy {
		for _, s := range subs {
			for _, kw := range s.Keywords {
				if _, ok := m[kw]; !ok {
					m[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw))
				}
			}
		}
	}
	return m
}()

// Classify picks a PARA category and target by keyword vote over the article
// title, content and insight text. Every keyword present adds one vote to its
// category and subcategory. Ties go to the first maximum in Categories and
// Taxonomy order; no votes at all yields resources/best-practices.
func Classify(title, content, insightText string) (Category, string) {
	text := strings.ToLower(title + " " + content + " " + insightText)

	scores := make(map[Category]int, len(Categories))
	targets := make(map[Category][]int, len(Categories))
	for _, c := range Categories {
		subs := Taxonomy[c]
		targets[c] = make([]int, len(subs))
		for i, s := range subs {
			for _, kw := range s.Keywords {
				if keywordPatterns[kw].MatchString(text) {
					scores[c]++
					targets[c][i]++
				}
			}
		}
	}

	best := Categories[0]
	for _, c := range Categories[1:] {
		if scores[c] > scores[best] {
			best = c
		}
	}
	if scores[best] == 0 {
		return DefaultCategory, DefaultTarget
	}

	bestIdx := 0
	for i, n := range targets[best] {
		if n > targets[best][bestIdx] {
			bestIdx = i
		}
	}
	return best, Taxonomy[best][bestIdx].Name
}

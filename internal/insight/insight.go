// Package insight defines the Insight record, the PARA taxonomy it is filed
// under, and the validator that turns raw extraction output into Insights.
package insight

import "strings"

// MaxInsights caps the number of insights kept per article.
const MaxInsights = 5

// Defaults applied by Validate when a field is missing.
const (
	DefaultCategory   = Resources
	DefaultTarget     = "best-practices"
	DefaultAction     = "Review for application"
	DefaultConfidence = ConfidenceMedium
)

// Confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Insight is one synthesized, actionable takeaway from an article.
type Insight struct {
	Insight      string   `json:"insight"`
	Action       string   `json:"action"`
	Framework    *string  `json:"framework"`
	ParaCategory Category `json:"para_category"`
	ParaTarget   string   `json:"para_target"`
	Rationale    string   `json:"rationale"`
	Confidence   string   `json:"confidence"`
}

// FrameworkName returns the framework or "" when none was detected.
func (i Insight) FrameworkName() string {
	if i.Framework == nil {
		return ""
	}
	return *i.Framework
}

// Record converts the insight to the loosely typed form strategies emit.
func (i Insight) Record() map[string]any {
	var fw any
	if i.Framework != nil {
		fw = *i.Framework
	}
	return map[string]any{
		"insight":       i.Insight,
		"action":        i.Action,
		"framework":     fw,
		"para_category": string(i.ParaCategory),
		"para_target":   i.ParaTarget,
		"rationale":     i.Rationale,
		"confidence":    i.Confidence,
	}
}

// Validate keeps only record-like entries with a non-empty "insight" string and
// fills the remaining fields with defaults. The result never exceeds MaxInsights
// and is empty, not nil, when nothing survives.
func Validate(raw []any) []Insight {
	valid := make([]Insight, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		text := strings.TrimSpace(str(m, "insight"))
		if text == "" {
			continue
		}

		ins := Insight{
			Insight:      text,
			Action:       strings.TrimSpace(str(m, "action")),
			Framework:    framework(m),
			ParaCategory: DefaultCategory,
			ParaTarget:   strings.ToLower(strings.TrimSpace(str(m, "para_target"))),
			Rationale:    strings.TrimSpace(str(m, "rationale")),
			Confidence:   strings.ToLower(strings.TrimSpace(str(m, "confidence"))),
		}
		if c, ok := ParseCategory(str(m, "para_category")); ok {
			ins.ParaCategory = c
		}
		if ins.ParaTarget == "" {
			ins.ParaTarget = DefaultTarget
		}
		if ins.Action == "" {
			ins.Action = DefaultAction
		}
		switch ins.Confidence {
		case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		default:
			ins.Confidence = DefaultConfidence
		}

		valid = append(valid, ins)
		if len(valid) == MaxInsights {
			break
		}
	}
	return valid
}

// str returns m[key] when it is a string and "" for any other type.
func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func framework(m map[string]any) *string {
	name := strings.TrimSpace(str(m, "framework"))
	switch strings.ToLower(name) {
	case "", "null", "none", "n/a":
		return nil
	}
	return &name
}

package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		title        string
		content      string
		insight      string
		wantCategory Category
		wantTarget   string
	}{
		{
			name:         "coaching vocabulary",
			title:        "Focus Blocks",
			content:      "Executive coaching clients protect deep work.",
			wantCategory: Areas,
			wantTarget:   "ef-coaching",
		},
		{
			name:         "ceramics vocabulary",
			title:        "Glaze chemistry",
			content:      "Fire the kiln slowly so the clay dries evenly.",
			wantCategory: Projects,
			wantTarget:   "ceramics",
		},
		{
			name:         "templates vocabulary",
			title:        "Weekly review",
			content:      "A checklist and a worksheet keep the review short.",
			wantCategory: Resources,
			wantTarget:   "templates",
		},
		{
			name:         "no keywords",
			title:        "Untitled",
			content:      "Nothing here matches anything at all.",
			wantCategory: Resources,
			wantTarget:   "best-practices",
		},
		{
			name:         "ai only at word start",
			title:        "Said again",
			content:      "She said the maintainer would explain it again.",
			wantCategory: Resources,
			wantTarget:   "best-practices",
		},
		{
			name:         "tie goes to earlier category",
			title:        "",
			content:      "clay and coach",
			wantCategory: Projects,
			wantTarget:   "ceramics",
		},
		{
			name:         "insight text votes too",
			title:        "Notes",
			content:      "Plain words only.",
			insight:      "Ask claude to draft the automation",
			wantCategory: Areas,
			wantTarget:   "ai-tools",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, target := Classify(tt.title, tt.content, tt.insight)
			assert.Equal(t, tt.wantCategory, c)
			assert.Equal(t, tt.wantTarget, target)
		})
	}
}

func TestClassifyTargetIsInVocabulary(t *testing.T) {
	c, target := Classify("Startup revenue", "Founders chase growth and market share.", "")
	assert.Equal(t, Areas, c)
	assert.Contains(t, Targets(c), target)
	assert.Equal(t, "business-strategy", target)
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" Projects ")
	assert.True(t, ok)
	assert.Equal(t, Projects, c)

	_, ok = ParseCategory("archives")
	assert.False(t, ok)
}

package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadmeAnalyzer_Score(t *testing.T) {
	full := "# Widget\n\n" +
		"[![Build](https://img.shields.io/github/actions/workflow/status/acme/widget/ci.yml)](https://github.com/acme/widget/actions)\n\n" +
		strings.Repeat("Widget turns configuration into running services. ", 3) + "\n\n" +
		"## Installation\n\n```\ngo install example.com/widget@latest\n```\n\n" +
		"## Usage\n\nRun `widget serve`.\n"

	tests := []struct {
		name         string
		files        map[string]string
		wantExists   bool
		wantDesc     bool
		wantInstall  bool
		wantUsage    bool
		wantScore    int
		wantSections []string
	}{
		{
			name:       "missing",
			files:      map[string]string{},
			wantScore:  0,
			wantExists: false,
		},
		{
			name:       "bare text file",
			files:      map[string]string{"README.txt": "hello"},
			wantExists: true,
			wantScore:  1,
		},
		{
			name:         "complete markdown",
			files:        map[string]string{"README.md": full},
			wantExists:   true,
			wantDesc:     true,
			wantInstall:  true,
			wantUsage:    true,
			wantScore:    9,
			wantSections: []string{"Widget", "Installation", "Usage"},
		},
		{
			name:         "markdown wins over rst",
			files:        map[string]string{"README.md": "# Title", "README.rst": "Usage\n=====\n"},
			wantExists:   true,
			wantScore:    2,
			wantSections: []string{"Title"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeTree(t, root, tt.files)
			names := make(map[string]bool)
			for name := range tt.files {
				names[name] = true
			}

			q, sections := NewReadmeAnalyzer().Analyze(root, names)

			assert.Equal(t, tt.wantExists, q.Exists)
			assert.Equal(t, tt.wantDesc, q.HasDescription)
			assert.Equal(t, tt.wantInstall, q.HasInstallation)
			assert.Equal(t, tt.wantUsage, q.HasUsage)
			assert.Equal(t, tt.wantScore, q.Score)
			assert.Equal(t, tt.wantSections, sections)
		})
	}
}

func TestScoreReadme_AllSignals(t *testing.T) {
	content := strings.Repeat("install usage example badge [![x](y)](z) ## section ", 10)
	q := scoreReadme(content, markdownOutline{headings: []string{"a"}, hasBadge: true})

	assert.Equal(t, 9, q.Score)
	assert.LessOrEqual(t, q.Score, maxReadmeScore)
}

func TestReadmeAnalyzer_BadgeFromAST(t *testing.T) {
	out := NewReadmeAnalyzer().outline([]byte("[![Coverage](https://codecov.io/x.svg)](https://codecov.io/x)\n"))

	assert.True(t, out.hasBadge)
	assert.Empty(t, out.headings)
}

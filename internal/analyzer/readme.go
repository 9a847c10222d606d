package analyzer

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// ReadmeFiles are checked in order; the first one present is analyzed.
var ReadmeFiles = []string{"README.md", "README.txt", "README.rst", "README"}

const (
	minDescriptionLength = 100
	maxReadmeScore       = 10
)

// ReadmeAnalyzer scores README files and extracts their section headings.
type ReadmeAnalyzer struct {
	md goldmark.Markdown
}

// NewReadmeAnalyzer creates an analyzer with GitHub-flavored markdown support.
func NewReadmeAnalyzer() *ReadmeAnalyzer {
	return &ReadmeAnalyzer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Analyze locates the README in repoPath and returns its quality and headings.
func (r *ReadmeAnalyzer) Analyze(repoPath string, names map[string]bool) (domain.ReadmeQuality, []string) {
	for _, name := range ReadmeFiles {
		if !names[name] {
			continue
		}
		content, err := os.ReadFile(filepath.Join(repoPath, name))
		if err != nil {
			slog.Debug("Failed to read README", "path", repoPath, "file", name, "error", err)
			return domain.ReadmeQuality{}, nil
		}

		var outline markdownOutline
		if isMarkdown(name) {
			outline = r.outline(content)
		}
		return scoreReadme(string(content), outline), outline.headings
	}
	return domain.ReadmeQuality{}, nil
}

// scoreReadme awards 1 for existence, 2 each for description, installation and usage,
// and 1 each for sections and badges, capped at maxReadmeScore.
func scoreReadme(content string, outline markdownOutline) domain.ReadmeQuality {
	lower := strings.ToLower(content)

	q := domain.ReadmeQuality{
		Exists:          true,
		HasDescription:  utf8.RuneCountInString(content) > minDescriptionLength,
		HasInstallation: strings.Contains(lower, "install") || strings.Contains(lower, "setup"),
		HasUsage:        strings.Contains(lower, "usage") || strings.Contains(lower, "example"),
		Score:           1,
	}

	if q.HasDescription {
		q.Score += 2
	}
	if q.HasInstallation {
		q.Score += 2
	}
	if q.HasUsage {
		q.Score += 2
	}
	if len(outline.headings) > 0 || strings.Contains(lower, "#") {
		q.Score++
	}
	if outline.hasBadge || strings.Contains(lower, "badge") || strings.Contains(lower, "[![") {
		q.Score++
	}

	q.Score = min(q.Score, maxReadmeScore)
	return q
}

// markdownOutline is what the markdown AST contributes to scoring
type markdownOutline struct {
	headings []string
	hasBadge bool
}

func (r *ReadmeAnalyzer) outline(source []byte) markdownOutline {
	var out markdownOutline
	doc := r.md.Parser().Parse(text.NewReader(source))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if title := strings.TrimSpace(nodeText(node, source)); title != "" {
				out.headings = append(out.headings, title)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			// A linked image is the usual shields.io badge form
			if _, ok := node.FirstChild().(*ast.Image); ok {
				out.hasBadge = true
			}
		}
		return ast.WalkContinue, nil
	})

	return out
}

// nodeText concatenates the inline text below n
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(nodeText(c, source))
		}
	}
	return b.String()
}

func isMarkdown(name string) bool {
	ext := GetFileExtension(name)
	return ext == ".md" || ext == ""
}

package analyzer

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

// treeStats is the result of one bounded walk over a repository.
type treeStats struct {
	size      domain.ProjectSize
	languages *languageTally
}

// walkTree visits files up to the filter's max depth, skipping filtered directories.
// Unreadable entries are ignored; cancellation stops the walk early.
func walkTree(ctx context.Context, root string, filter *TreeFilter, detector *LanguageDetector) treeStats {
	stats := treeStats{languages: newLanguageTally()}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if filter.ShouldSkipDir(d.Name()) || Depth(rel) > filter.MaxDepth() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		name := d.Name()
		language := detector.Detect(name)
		isCode := detector.IsCode(name)

		stats.size.TotalFiles++
		stats.size.TotalSize += info.Size()
		if isCode {
			stats.size.CodeFiles++
			stats.size.CodeSize += info.Size()
		}

		if language == "" && !isCode {
			return nil
		}

		lines := countLines(path)
		if language != "" {
			stats.languages.add(language, lines)
		}
		if isCode {
			stats.size.CodeLines += lines
		}
		return nil
	})
	if err != nil {
		slog.Debug("Tree walk stopped", "path", root, "error", err)
	}

	return stats
}

// countLines returns the newline-separated line count of a text file, 0 for binary or unreadable files
func countLines(path string) int {
	content, err := os.ReadFile(path)
	if err != nil || IsBinary(content) {
		return 0
	}
	return bytes.Count(content, []byte{'\n'}) + 1
}

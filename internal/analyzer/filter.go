package analyzer

import (
	"path/filepath"
	"slices"
	"strings"
)

// DefaultSkipDirs contains directory names never descended into during analysis.
// These are dependency trees, build outputs and tool caches that would
// otherwise dominate language and size metrics.
var DefaultSkipDirs = []string{
	// Dependencies
	"node_modules", "vendor", "Pods",

	// Build output
	"dist", "build", "out", "target", "bin", "obj", ".next", ".nuxt", "coverage",

	// Tool state
	".git", ".vscode", ".idea", "__pycache__", ".pytest_cache",
}

// TreeFilter decides which directories and files take part in a bounded walk.
type TreeFilter struct {
	skipDirs []string
	maxDepth int
}

// NewTreeFilter creates a TreeFilter with the default skip list.
func NewTreeFilter(maxDepth int) *TreeFilter {
	return &TreeFilter{
		skipDirs: DefaultSkipDirs,
		maxDepth: maxDepth,
	}
}

// ShouldSkipDir returns true for listed names and any hidden directory.
func (f *TreeFilter) ShouldSkipDir(name string) bool {
	return strings.HasPrefix(name, ".") || slices.Contains(f.skipDirs, name)
}

// MaxDepth returns the deepest directory level visited below the root.
func (f *TreeFilter) MaxDepth() int {
	return f.maxDepth
}

// Depth returns how many directory levels relPath sits below the root.
// The root itself ("." or "") is depth 0.
func Depth(relPath string) int {
	relPath = filepath.ToSlash(relPath)
	if relPath == "." || relPath == "" {
		return 0
	}
	return strings.Count(relPath, "/") + 1
}

// IsBinary checks if the content appears to be binary by looking for null bytes
// in the first 512 bytes. This is a heuristic used by git and other tools.
func IsBinary(content []byte) bool {
	checkLen := min(len(content), 512)

	for i := range checkLen {
		if content[i] == 0 {
			return true
		}
	}
	return false
}

// GetFileExtension returns the lower-cased file extension including the leading dot.
// Returns empty string if no extension.
func GetFileExtension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

package vcs

import (
	"bytes"
	"os"
	"path/filepath"
)

// MarkerName is the entry that identifies a repository root.
const MarkerName = ".git"

// IsRepositoryRoot reports whether dir is the top of a git work tree.
// A .git directory qualifies, as does a .git file pointing elsewhere with "gitdir:"
// (linked worktrees and submodules).
func IsRepositoryRoot(dir string) bool {
	marker := filepath.Join(dir, MarkerName)
	info, err := os.Stat(marker)
	if err != nil {
		return false
	}

	if info.IsDir() {
		return true
	}

	if !info.Mode().IsRegular() {
		return false
	}

	content, err := os.ReadFile(marker)
	if err != nil {
		return false
	}
	return bytes.HasPrefix(content, []byte("gitdir:"))
}

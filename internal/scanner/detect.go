package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/sha1n/mcp-repo-catalog/internal/vcs"
)

// CommonRootCandidates are probed, relative to the home directory, by DetectCommonRoots.
var CommonRootCandidates = []string{
	"Documents/GitHub",
	"Documents/github",
	"Projects",
	"workspace",
	"dev",
	"code",
	"source",
	"repos",
}

// RootCandidate describes a directory that may be worth configuring as a scan root.
type RootCandidate struct {
	Path            string `json:"path"`
	HasRepositories bool   `json:"hasRepositories"`
	RepositoryCount int    `json:"repositoryCount"`
	FolderCount     int    `json:"folderCount"`
}

// DetectCommonRoots probes well-known project folders under home.
// Candidates holding repositories sort first, then by total entries descending.
func DetectCommonRoots(home string) []RootCandidate {
	var results []RootCandidate
	for _, rel := range CommonRootCandidates {
		dir := filepath.Join(home, filepath.FromSlash(rel))
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		results = append(results, InspectRoot(dir))
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.HasRepositories != b.HasRepositories {
			return a.HasRepositories
		}
		return a.RepositoryCount+a.FolderCount > b.RepositoryCount+b.FolderCount
	})
	return results
}

// InspectRoot counts the immediate subdirectories of dir and how many are repositories.
func InspectRoot(dir string) RootCandidate {
	candidate := RootCandidate{Path: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Debug("Failed to inspect root candidate", "path", dir, "error", err)
		return candidate
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate.FolderCount++
		if vcs.IsRepositoryRoot(filepath.Join(dir, entry.Name())) {
			candidate.RepositoryCount++
		}
	}
	candidate.HasRepositories = candidate.RepositoryCount > 0
	return candidate
}

// Package analyzer infers project metadata from a repository's file tree.
//
// Analysis only reads the filesystem. Every failure degrades to a default
// value, so Analyze always returns usable metadata.
package analyzer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

// DefaultMaxDepth bounds the language and size walk below the repository root.
const DefaultMaxDepth = 3

// Analyzer is the ProjectAnalyzer contract.
type Analyzer interface {
	Analyze(ctx context.Context, repoPath string) domain.RepositoryMetadata
}

// ProjectAnalyzer implements Analyzer over the local filesystem.
// It holds no per-call state and is safe for concurrent use.
type ProjectAnalyzer struct {
	filter    *TreeFilter
	languages *LanguageDetector
	readme    *ReadmeAnalyzer
	parsers   []ManifestParser
}

// New creates a ProjectAnalyzer with default depth, skip list and manifest parsers.
func New() *ProjectAnalyzer {
	return NewWithFilter(NewTreeFilter(DefaultMaxDepth))
}

// NewWithFilter creates a ProjectAnalyzer using a custom tree filter.
func NewWithFilter(filter *TreeFilter) *ProjectAnalyzer {
	return &ProjectAnalyzer{
		filter:    filter,
		languages: NewLanguageDetector(),
		readme:    NewReadmeAnalyzer(),
		parsers:   DefaultManifestParsers(),
	}
}

// Analyze inspects repoPath and returns its metadata.
// A path that cannot be listed yields EmptyMetadata.
func (a *ProjectAnalyzer) Analyze(ctx context.Context, repoPath string) domain.RepositoryMetadata {
	entries, err := os.ReadDir(repoPath)
	if err != nil {
		slog.Debug("Failed to list repository", "path", repoPath, "error", err)
		return domain.EmptyMetadata()
	}

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}

	tree := walkTree(ctx, repoPath, a.filter, a.languages)
	deps := a.dependencies(repoPath, entries)
	readme, sections := a.readme.Analyze(repoPath, names)

	meta := domain.RepositoryMetadata{
		Language:     tree.languages.primary(),
		Runtime:      detectRuntime(names),
		Databases:    detectDatabases(repoPath, names, deps),
		Dependencies: deps,
		ProjectSize:  tree.size,
		Readme:       readme,
		Sections:     sections,
		HasTests:     hasTests(entries),
		HasCICD:      hasCI(repoPath),
		License:      detectLicense(repoPath, names),
	}
	return meta
}

// dependencies runs every parser whose manifest is present at the top level.
// Parse failures are logged and the manifest is skipped.
func (a *ProjectAnalyzer) dependencies(repoPath string, entries []os.DirEntry) []domain.Dependency {
	deps := []domain.Dependency{}

	for _, parser := range a.parsers {
		for _, e := range entries {
			name := e.Name()
			if !e.Type().IsRegular() || !parser.CanParse(name) {
				continue
			}
			path := filepath.Join(repoPath, name)
			content, err := os.ReadFile(path)
			if err != nil {
				slog.Debug("Failed to read manifest", "path", path, "error", err)
				continue
			}
			parsed, err := parser.ParseFile(content)
			if err != nil {
				slog.Debug("Failed to parse manifest", "path", path, "error", err)
				continue
			}
			deps = append(deps, parsed...)
		}
	}
	return deps
}

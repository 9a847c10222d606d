// Package scanner discovers repositories below configured root directories.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sha1n/mcp-repo-catalog/internal/analyzer"
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"github.com/sha1n/mcp-repo-catalog/internal/vcs"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxDepth is how many directory levels below a root are searched
	DefaultMaxDepth = 3

	// DefaultMaxConcurrency bounds concurrent repository metadata collection
	DefaultMaxConcurrency = 5

	// ScanCompletionPercent is the share of progress reserved for walking the roots
	ScanCompletionPercent = 90

	hiddenPrefix = "."
)

// ProgressFunc receives scan progress. percent is nil for advisory messages
// such as invalid root warnings.
type ProgressFunc func(message string, percent *int)

// Percent returns a pointer for use with ProgressFunc.
func Percent(p int) *int {
	return &p
}

// Options configures a single scan.
type Options struct {
	RootPaths      []string
	MaxDepth       int
	IncludeHidden  bool
	ExcludePaths   []string
	MaxConcurrency int
}

// Result is the outcome of a completed scan.
type Result struct {
	// Repositories is keyed by repository ID.
	Repositories map[string]domain.Repository
	// InvalidRoots lists configured roots that were missing or not directories.
	InvalidRoots []string
}

// Scanner walks root directories and builds a Repository for every repository root found.
type Scanner struct {
	extractor vcs.Extractor
	analyzer  analyzer.Analyzer
	now       func() time.Time
}

// New creates a scanner using the given metadata collaborators.
func New(extractor vcs.Extractor, projectAnalyzer analyzer.Analyzer) *Scanner {
	return &Scanner{
		extractor: extractor,
		analyzer:  projectAnalyzer,
		now:       time.Now,
	}
}

// Scan discovers repositories under every root in opts.
// Missing roots are reported through onProgress and skipped. If ctx is cancelled
// the partial result is discarded and ctx.Err() is returned.
func (s *Scanner) Scan(ctx context.Context, opts Options, onProgress ProgressFunc) (*Result, error) {
	opts = withDefaults(opts)
	report := func(msg string, percent *int) {
		if onProgress != nil {
			onProgress(msg, percent)
		}
	}

	result := &Result{Repositories: make(map[string]domain.Repository)}
	report("Preparing to scan...", Percent(0))

	matcher := NewExcludeMatcher(opts.ExcludePaths)
	total := len(opts.RootPaths)

	for i, root := range opts.RootPaths {
		if err := ctx.Err(); err != nil {
			slog.Info("Repository scan cancelled", "completed_roots", i, "total_roots", total)
			return nil, err
		}

		name := filepath.Base(root)
		report(fmt.Sprintf("Scanning folder: %s", name), Percent(i*ScanCompletionPercent/total))

		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			slog.Warn("Root path does not exist or is not accessible", "path", root, "error", err)
			result.InvalidRoots = append(result.InvalidRoots, root)
			report(fmt.Sprintf("Path does not exist or is not accessible: %s", root), nil)
			continue
		}

		var found []string
		if err := s.discover(ctx, root, 0, opts, matcher, &found); err != nil {
			return nil, err
		}

		repos, err := s.build(ctx, found, opts.MaxConcurrency)
		if err != nil {
			return nil, err
		}
		for _, repo := range repos {
			result.Repositories[repo.ID] = repo
		}

		slog.Info("Root scan completed", "path", root, "found", len(repos), "total", len(result.Repositories))
		report(fmt.Sprintf("Found %d repositories in %s", len(repos), name), Percent((i+1)*ScanCompletionPercent/total))
	}

	return result, nil
}

// discover walks dir depth-first, appending repository roots to found.
// It does not descend into a repository once found.
func (s *Scanner) discover(ctx context.Context, dir string, depth int, opts Options, matcher *ExcludeMatcher, found *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > opts.MaxDepth || matcher.Excluded(dir) {
		return nil
	}

	if vcs.IsRepositoryRoot(dir) {
		slog.Debug("Found repository", "path", dir)
		*found = append(*found, dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Debug("Failed to scan directory", "path", dir, "error", err)
		return nil
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if !opts.IncludeHidden && strings.HasPrefix(entry.Name(), hiddenPrefix) {
			continue
		}
		if err := s.discover(ctx, filepath.Join(dir, entry.Name()), depth+1, opts, matcher, found); err != nil {
			return err
		}
	}
	return nil
}

// build collects metadata for each path using at most maxConcurrency workers.
func (s *Scanner) build(ctx context.Context, paths []string, maxConcurrency int) ([]domain.Repository, error) {
	repos := make([]domain.Repository, len(paths))

	// Use semaphore to limit parallel metadata collection
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			if ctx.Err() != nil {
				return
			}
			repos[i] = s.Build(ctx, p)
		}(i, p)
	}

	wg.Wait()

	// Results of in-flight work are discarded if cancellation won
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return repos, nil
}

// Extractor returns the version control backend used by Build.
func (s *Scanner) Extractor() vcs.Extractor {
	return s.extractor
}

// Build creates a fresh Repository for path, running extraction and analysis concurrently.
func (s *Scanner) Build(ctx context.Context, path string) domain.Repository {
	var (
		gitInfo  domain.GitInfo
		metadata domain.RepositoryMetadata
		eg       errgroup.Group
	)

	eg.Go(func() error {
		gitInfo = s.extractor.Extract(ctx, path)
		return nil
	})
	eg.Go(func() error {
		metadata = s.analyzer.Analyze(ctx, path)
		return nil
	})
	_ = eg.Wait()

	now := s.now()
	abs := path
	if a, err := filepath.Abs(path); err == nil {
		abs = filepath.Clean(a)
	}

	return domain.Repository{
		ID:           domain.RepositoryID(path),
		Name:         filepath.Base(abs),
		Path:         abs,
		GitInfo:      gitInfo,
		Metadata:     metadata,
		Tags:         []string{},
		LastAccessed: now,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastScanAt:   now,
	}
}

func withDefaults(opts Options) Options {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.ExcludePaths == nil {
		opts.ExcludePaths = DefaultExcludePaths
	}
	return opts
}

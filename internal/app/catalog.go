package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sha1n/mcp-repo-catalog/internal/analyzer"
	"github.com/sha1n/mcp-repo-catalog/internal/cache"
	"github.com/sha1n/mcp-repo-catalog/internal/catalog"
	"github.com/sha1n/mcp-repo-catalog/internal/config"
	"github.com/sha1n/mcp-repo-catalog/internal/scanner"
	"github.com/sha1n/mcp-repo-catalog/internal/store"
	"github.com/sha1n/mcp-repo-catalog/internal/vcs"
)

// NewExtractor returns the VCS backend selected by settings.
func NewExtractor(s *config.CatalogSettings) vcs.Extractor {
	if s.VCSBackend == config.VCSBackendGoGit {
		return vcs.NewGoGitExtractor(s.GitTimeout)
	}
	return vcs.NewGitExtractor(s.GitTimeout)
}

// ScanOptions converts settings into catalog scan options.
func ScanOptions(s *config.CatalogSettings) catalog.Options {
	return catalog.Options{
		RootPaths:          s.RootPaths,
		ExcludePaths:       s.ExcludePaths,
		ScanDepth:          s.ScanDepth,
		IncludeHidden:      s.IncludeHidden,
		MaxConcurrentScans: s.MaxConcurrentScans,
	}
}

// OpenCatalog builds a catalog backed by the configured store and cache.
// The returned cleanup closes both the catalog and the store.
func OpenCatalog(settings *config.Settings) (*catalog.Catalog, func(), error) {
	kv, err := store.OpenBolt(settings.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}

	var snapshot *cache.Cache
	if settings.Cache.Enabled {
		snapshot = cache.New(settings.Cache.Path, settings.Cache.MaxAge)
	}

	cat, err := catalog.New(catalog.Params{
		Scanner: scanner.New(NewExtractor(&settings.Catalog), analyzer.New()),
		Store:   kv,
		Cache:   snapshot,
	})
	if err != nil {
		_ = kv.Close()
		return nil, nil, fmt.Errorf("failed to create catalog: %w", err)
	}

	cleanup := func() {
		if err := cat.Close(); err != nil {
			slog.Error("Failed to close catalog", "error", err)
		}
		if err := kv.Close(); err != nil {
			slog.Error("Failed to close state store", "error", err)
		}
	}
	return cat, cleanup, nil
}

// Warmup loads the catalog from the cache, or starts a background scan when
// there is no usable snapshot. Cancelling ctx stops the scan.
func Warmup(ctx context.Context, cat *catalog.Catalog, opts catalog.Options) <-chan struct{} {
	done := make(chan struct{})

	if count, ok := cat.Load(ctx, opts); ok {
		slog.Info("Catalog ready from cache", "repositories", count)
		close(done)
		return done
	}

	go func() {
		defer close(done)
		res, err := cat.Scan(ctx, opts, nil)
		if err != nil {
			slog.Error("Initial scan failed", "error", err)
			return
		}
		slog.Info("Initial scan finished", "status", res.Status, "repositories", res.Repositories)
	}()
	return done
}

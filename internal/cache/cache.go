// Package cache persists catalog snapshots between runs.
//
// A snapshot is only trusted when its format version matches, it was written
// for the same set of root directories and it is younger than the configured
// max age. Any read or write failure is logged and treated as a cache miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

const (
	// FormatVersion is the current document schema version
	FormatVersion = "1.0.0"

	// DefaultFilename is the default cache document filename
	DefaultFilename = "repository-cache.json"

	// DefaultMaxAge is how long a snapshot stays valid
	DefaultMaxAge = 24 * time.Hour

	lockTimeout = 5 * time.Second
)

// Entry is a repository snapshot plus capture bookkeeping.
// Timestamps are epoch milliseconds.
type Entry struct {
	domain.Repository
	CacheTimestamp        int64 `json:"cacheTimestamp"`
	DirectoryLastModified int64 `json:"directoryLastModified"`
}

// Document is the on-disk layout.
type Document struct {
	Version           string   `json:"version"`
	Timestamp         int64    `json:"timestamp"`
	TargetDirectories []string `json:"targetDirectories"`
	Repositories      []Entry  `json:"repositories"`
}

// Stats describes the cache file.
type Stats struct {
	Exists          bool       `json:"exists"`
	RepositoryCount int        `json:"repositoryCount"`
	LastUpdated     *time.Time `json:"lastUpdated"`
	Size            int64      `json:"size"`
}

// Cache reads and writes a single snapshot document.
type Cache struct {
	path   string
	maxAge time.Duration
	lock   *FileLock
	mu     sync.Mutex
	now    func() time.Time
}

// New creates a cache stored at path. A non-positive maxAge uses DefaultMaxAge.
func New(path string, maxAge time.Duration) *Cache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Cache{
		path:   path,
		maxAge: maxAge,
		lock:   NewFileLock(path + ".lock"),
		now:    time.Now,
	}
}

// Path returns the cache document location.
func (c *Cache) Path() string {
	return c.path
}

// Load returns the cached entries, or nil when the document is missing,
// unreadable, of another version, written for a different root set or too old.
func (c *Cache) Load(roots []string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(roots)
}

func (c *Cache) load(roots []string) []Entry {
	doc, err := c.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to load cache", "path", c.path, "error", err)
		}
		return nil
	}

	switch {
	case doc.Version != FormatVersion:
		slog.Debug("Cache version mismatch", "found", doc.Version, "want", FormatVersion)
		return nil
	case !sameRoots(doc.TargetDirectories, roots):
		slog.Debug("Cache root directories changed", "cached", doc.TargetDirectories, "current", roots)
		return nil
	case c.now().Sub(time.UnixMilli(doc.Timestamp)) > c.maxAge:
		slog.Debug("Cache expired", "written", time.UnixMilli(doc.Timestamp), "max_age", c.maxAge)
		return nil
	}

	if doc.Repositories == nil {
		return []Entry{}
	}
	return doc.Repositories
}

// Save replaces the snapshot with repos, recording the directory mtime of each.
func (c *Cache) Save(roots []string, repos []domain.Repository) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, 0, len(repos))
	for _, r := range repos {
		entries = append(entries, c.entry(r))
	}
	c.save(roots, entries)
}

// UpdateOne replaces or appends a single repository. It does nothing when
// there is no valid snapshot to update.
func (c *Cache) UpdateOne(roots []string, repo domain.Repository) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load(roots)
	if entries == nil {
		return
	}

	updated := c.entry(repo)
	idx := slices.IndexFunc(entries, func(e Entry) bool { return e.ID == repo.ID })
	if idx >= 0 {
		entries[idx] = updated
	} else {
		entries = append(entries, updated)
	}
	c.save(roots, entries)
}

// Cleanup drops entries whose path is not in validPaths.
func (c *Cache) Cleanup(roots []string, validPaths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load(roots)
	if entries == nil {
		return
	}

	valid := make(map[string]bool, len(validPaths))
	for _, p := range validPaths {
		valid[domain.NormalizePath(p)] = true
	}

	kept := entries[:0]
	for _, e := range entries {
		if valid[domain.NormalizePath(e.Path)] {
			kept = append(kept, e)
		}
	}
	if removed := len(entries) - len(kept); removed > 0 {
		slog.Debug("Removed stale cache entries", "count", removed)
	}
	c.save(roots, kept)
}

// Clear deletes the cache document.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to clear cache", "path", c.path, "error", err)
	}
}

// Stats reports on the cache file. RepositoryCount only counts a valid snapshot.
func (c *Cache) Stats(roots []string) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(c.path)
	if err != nil {
		return Stats{}
	}

	modified := info.ModTime()
	return Stats{
		Exists:          true,
		RepositoryCount: len(c.load(roots)),
		LastUpdated:     &modified,
		Size:            info.Size(),
	}
}

// IsDirectoryChanged reports whether the entry's directory was modified after
// it was captured. A directory that can no longer be read counts as changed.
func IsDirectoryChanged(e Entry) bool {
	info, err := os.Stat(e.Path)
	if err != nil {
		return true
	}
	return info.ModTime().UnixMilli() > e.DirectoryLastModified
}

func (c *Cache) entry(r domain.Repository) Entry {
	return Entry{
		Repository:            r,
		CacheTimestamp:        c.now().UnixMilli(),
		DirectoryLastModified: directoryLastModified(r.Path),
	}
}

func (c *Cache) read() (*Document, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse cache: %w", err)
	}
	return &doc, nil
}

func (c *Cache) save(roots []string, entries []Entry) {
	if err := c.write(roots, entries); err != nil {
		slog.Warn("Failed to save cache", "path", c.path, "error", err)
	}
}

// write stores the document atomically via write-to-temp + rename while
// holding the cross-process lock.
func (c *Cache) write(roots []string, entries []Entry) error {
	doc := Document{
		Version:           FormatVersion,
		Timestamp:         c.now().UnixMilli(),
		TargetDirectories: append([]string{}, roots...),
		Repositories:      entries,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := c.lock.Lock(context.Background(), lockTimeout); err != nil {
		return fmt.Errorf("failed to lock cache: %w", err)
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			slog.Warn("Failed to unlock cache", "error", err)
		}
	}()

	tempPath := c.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache temp file: %w", err)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

func directoryLastModified(dir string) int64 {
	info, err := os.Stat(dir)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixMilli()
}

// sameRoots compares two root lists as sets of normalized paths.
func sameRoots(a, b []string) bool {
	return slices.Equal(rootSet(a), rootSet(b))
}

func rootSet(roots []string) []string {
	set := make([]string, 0, len(roots))
	for _, r := range roots {
		set = append(set, domain.NormalizePath(r))
	}
	slices.Sort(set)
	return slices.Compact(set)
}

// Package catalog owns the repository catalog: it runs scans, merges user
// state such as favorites, persists snapshots and answers queries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/sha1n/mcp-repo-catalog/internal/cache"
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"github.com/sha1n/mcp-repo-catalog/internal/filter"
	"github.com/sha1n/mcp-repo-catalog/internal/scanner"
	"github.com/sha1n/mcp-repo-catalog/internal/store"
	"github.com/sha1n/mcp-repo-catalog/internal/vcs"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned for operations on a path that is not in the catalog.
var ErrNotFound = errors.New("repository not found")

// ErrIndexUnavailable is returned by Search after Close.
var ErrIndexUnavailable = errors.New("search index is not available")

// Progress percentages reported after the roots have been walked.
const (
	progressUpdating  = scanner.ScanCompletionPercent
	progressFavorites = 95
	progressDone      = 100
)

// ScanStatus is the outcome of a Scan call.
type ScanStatus string

const (
	StatusCompleted      ScanStatus = "completed"
	StatusCancelled      ScanStatus = "cancelled"
	StatusNothingToDo    ScanStatus = "nothing_to_do"
	StatusAlreadyRunning ScanStatus = "already_running"
)

// Options is the scan configuration read on every Scan and Load.
type Options struct {
	RootPaths          []string
	ExcludePaths       []string
	ScanDepth          int
	IncludeHidden      bool
	MaxConcurrentScans int
}

func (o Options) scannerOptions() scanner.Options {
	return scanner.Options{
		RootPaths:      o.RootPaths,
		MaxDepth:       o.ScanDepth,
		IncludeHidden:  o.IncludeHidden,
		ExcludePaths:   o.ExcludePaths,
		MaxConcurrency: o.MaxConcurrentScans,
	}
}

// ScanResult reports what a Scan did.
type ScanResult struct {
	Status       ScanStatus    `json:"status"`
	Repositories int           `json:"repositories"`
	InvalidRoots []string      `json:"invalidRoots,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Stats summarizes the catalog.
type Stats struct {
	Total        int            `json:"total"`
	Favorites    int            `json:"favorites"`
	Archived     int            `json:"archived"`
	ByLanguage   map[string]int `json:"byLanguage"`
	LastScanTime *time.Time     `json:"lastScanTime,omitempty"`
}

// SearchResult is a repository matched by Search.
type SearchResult struct {
	Repository domain.Repository `json:"repository"`
	Score      float64           `json:"score"`
}

// Params holds the catalog collaborators.
type Params struct {
	Scanner *scanner.Scanner
	Store   store.KeyValueStore
	// Cache is optional; nil disables snapshot persistence.
	Cache *cache.Cache
}

// Catalog is the single owner of the repository table.
type Catalog struct {
	scanner   *scanner.Scanner
	cache     *cache.Cache
	favorites *store.Favorites
	profiles  *filter.ProfileManager
	events    *broker

	mu       sync.RWMutex
	repos    map[string]domain.Repository
	index    bleve.Index
	roots    []string
	lastScan time.Time

	scanning atomic.Bool
	now      func() time.Time
}

// New creates an empty catalog.
func New(p Params) (*Catalog, error) {
	if p.Scanner == nil {
		return nil, fmt.Errorf("scanner cannot be nil")
	}
	if p.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	index, err := newIndex(nil)
	if err != nil {
		return nil, err
	}

	return &Catalog{
		scanner:   p.Scanner,
		cache:     p.Cache,
		favorites: store.NewFavorites(p.Store),
		profiles:  filter.NewProfileManager(p.Store),
		events:    newBroker(),
		repos:     make(map[string]domain.Repository),
		index:     index,
		now:       time.Now,
	}, nil
}

// Scan rebuilds the catalog from the filesystem. Only one scan runs at a time;
// a concurrent call returns StatusAlreadyRunning. When ctx is cancelled the
// catalog is left unchanged and StatusCancelled is returned.
func (c *Catalog) Scan(ctx context.Context, opts Options, onProgress scanner.ProgressFunc) (ScanResult, error) {
	report := func(msg string, percent int) {
		if onProgress != nil {
			onProgress(msg, scanner.Percent(percent))
		}
	}

	if !c.scanning.CompareAndSwap(false, true) {
		slog.Info("Scan already in progress, ignoring request")
		return ScanResult{Status: StatusAlreadyRunning}, nil
	}
	defer c.scanning.Store(false)

	if len(opts.RootPaths) == 0 {
		slog.Info("No root paths configured, nothing to scan")
		report("No root paths configured", progressDone)
		return ScanResult{Status: StatusNothingToDo}, nil
	}

	start := c.now()
	c.publish(Event{Type: EventScanStarted})
	slog.Info("Starting repository scan", "roots", len(opts.RootPaths))

	result, err := c.scanner.Scan(ctx, opts.scannerOptions(), onProgress)
	if err != nil {
		if ctx.Err() != nil {
			slog.Info("Repository scan cancelled")
			c.publish(Event{Type: EventScanCancelled, Count: c.count()})
			return ScanResult{Status: StatusCancelled, Duration: c.now().Sub(start)}, nil
		}
		return ScanResult{}, fmt.Errorf("scan failed: %w", err)
	}

	report("Updating repository list...", progressUpdating)
	found := make([]domain.Repository, 0, len(result.Repositories))
	for _, r := range result.Repositories {
		found = append(found, r)
	}

	report("Loading favorites...", progressFavorites)
	c.favorites.Reload()
	count := c.replace(found, opts.RootPaths, start)

	if c.cache != nil {
		c.cache.Save(opts.RootPaths, c.all())
	}

	report(fmt.Sprintf("Complete! Found %d repositories", count), progressDone)
	slog.Info("Repository scan completed", "repositories", count, "invalid_roots", len(result.InvalidRoots), "duration", c.now().Sub(start))
	c.publish(Event{Type: EventScanCompleted, Count: count})

	return ScanResult{
		Status:       StatusCompleted,
		Repositories: count,
		InvalidRoots: result.InvalidRoots,
		Duration:     c.now().Sub(start),
	}, nil
}

// Load warm-starts the catalog from the cache. Entries whose directory is gone
// are dropped and entries whose directory changed are rebuilt. It returns false
// when there is no valid snapshot, in which case a full Scan is needed.
func (c *Catalog) Load(ctx context.Context, opts Options) (int, bool) {
	if c.cache == nil {
		return 0, false
	}
	entries := c.cache.Load(opts.RootPaths)
	if entries == nil {
		return 0, false
	}

	repos := make([]domain.Repository, 0, len(entries))
	valid := make([]string, 0, len(entries))
	refreshed := 0
	for _, e := range entries {
		if _, err := os.Stat(e.Path); err != nil {
			slog.Debug("Dropping cached repository", "path", e.Path, "error", err)
			continue
		}
		repo := e.Repository
		if cache.IsDirectoryChanged(e) {
			repo = mergeUserState(c.scanner.Build(ctx, e.Path), repo)
			refreshed++
		}
		repos = append(repos, repo)
		valid = append(valid, e.Path)
	}

	count := c.replace(repos, opts.RootPaths, time.Time{})
	switch {
	case refreshed > 0:
		c.cache.Save(opts.RootPaths, c.all())
	case len(valid) < len(entries):
		c.cache.Cleanup(opts.RootPaths, valid)
	}

	slog.Info("Loaded repositories from cache", "repositories", count, "refreshed", refreshed, "dropped", len(entries)-len(valid))
	c.publish(Event{Type: EventScanCompleted, Count: count})
	return count, true
}

// List returns catalog entries ordered by ID, narrowed by lf and then sorted by
// sort when given.
func (c *Catalog) List(lf *domain.ListFilter, sort *domain.SortOption) []domain.Repository {
	repos := c.all()
	if lf != nil {
		repos = filter.ApplyList(repos, *lf)
	}
	if sort != nil {
		filter.Sort(repos, *sort)
	}
	return repos
}

// Get returns the repository at path.
func (c *Catalog) Get(path string) (domain.Repository, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.repos[domain.RepositoryID(path)]
	if !ok {
		return domain.Repository{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return r.Clone(), nil
}

// Details is live version control data that is not part of the catalog snapshot.
type Details struct {
	Status        *vcs.StatusSummary `json:"status,omitempty"`
	RecentCommits []vcs.Commit       `json:"recentCommits,omitempty"`
}

// Details reads the work tree status and the last commits of the repository at path.
// A failed query leaves its field empty.
func (c *Catalog) Details(ctx context.Context, path string, commits int) (Details, error) {
	r, err := c.Get(path)
	if err != nil {
		return Details{}, err
	}

	var (
		d         Details
		eg        errgroup.Group
		extractor = c.scanner.Extractor()
	)
	eg.Go(func() error {
		status, err := extractor.StatusSummary(ctx, r.Path)
		if err != nil {
			slog.Debug("Status summary failed", "path", r.Path, "error", err)
			return nil
		}
		d.Status = &status
		return nil
	})
	eg.Go(func() error {
		log, err := extractor.RecentCommits(ctx, r.Path, commits)
		if err != nil {
			slog.Debug("Recent commits failed", "path", r.Path, "error", err)
			return nil
		}
		d.RecentCommits = log
		return nil
	})
	_ = eg.Wait()
	return d, nil
}

// SetFavorite marks or unmarks the repository at path.
func (c *Catalog) SetFavorite(path string, favorite bool) error {
	id := domain.RepositoryID(path)
	if _, err := c.Get(path); err != nil {
		return err
	}

	// Persisted before the table update; replace re-reads the set under the write lock
	if _, err := c.favorites.Set(id, favorite); err != nil {
		return fmt.Errorf("failed to persist favorite: %w", err)
	}

	c.mu.Lock()
	r, ok := c.repos[id]
	if ok {
		r.IsFavorite = favorite
		r.UpdatedAt = c.now()
		c.repos[id] = r
	}
	roots := c.roots
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if c.cache != nil {
		c.cache.UpdateOne(roots, r)
	}

	slog.Debug("Favorite updated", "id", id, "favorite", favorite)
	c.publish(Event{Type: EventFavoriteChanged, RepositoryID: id})
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (c *Catalog) ToggleFavorite(path string) (bool, error) {
	r, err := c.Get(path)
	if err != nil {
		return false, err
	}
	return !r.IsFavorite, c.SetFavorite(path, !r.IsFavorite)
}

// Refresh re-extracts metadata for a single repository.
func (c *Catalog) Refresh(ctx context.Context, path string) (domain.Repository, error) {
	prev, err := c.Get(path)
	if err != nil {
		return domain.Repository{}, err
	}

	r := mergeUserState(c.scanner.Build(ctx, prev.Path), prev)
	r.IsFavorite = c.favorites.Contains(r.ID)

	c.mu.Lock()
	if _, ok := c.repos[r.ID]; !ok {
		c.mu.Unlock()
		return domain.Repository{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	c.repos[r.ID] = r
	if c.index != nil {
		if err := c.index.Index(r.ID, domain.NewRepositoryDocument(r)); err != nil {
			slog.Warn("Failed to index repository", "id", r.ID, "error", err)
		}
	}
	roots := c.roots
	c.mu.Unlock()

	if c.cache != nil {
		c.cache.UpdateOne(roots, r)
	}

	c.publish(Event{Type: EventRepositoryUpdated, RepositoryID: r.ID})
	return r.Clone(), nil
}

// Clear empties the catalog and deletes the cache snapshot.
// Favorites and filter profiles are kept.
func (c *Catalog) Clear() {
	c.replace(nil, nil, time.Time{})
	if c.cache != nil {
		c.cache.Clear()
	}
	slog.Info("Catalog cleared")
	c.publish(Event{Type: EventCatalogCleared})
}

// Stats summarizes the catalog.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{Total: len(c.repos), ByLanguage: make(map[string]int)}
	for _, r := range c.repos {
		if r.IsFavorite {
			stats.Favorites++
		}
		if r.IsArchived {
			stats.Archived++
		}
		lang := r.Metadata.Language
		if lang == "" {
			lang = domain.UnknownLanguage
		}
		stats.ByLanguage[lang]++
	}
	if !c.lastScan.IsZero() {
		t := c.lastScan
		stats.LastScanTime = &t
	}
	return stats
}

// Search runs a full-text query over the catalog, best matches first.
func (c *Catalog) Search(q string, kind SearchKind, limit int) ([]SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.index == nil {
		return nil, ErrIndexUnavailable
	}

	req := bleve.NewSearchRequest(buildQuery(q, kind))
	req.Size = limit
	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if r, ok := c.repos[hit.ID]; ok {
			out = append(out, SearchResult{Repository: r.Clone(), Score: hit.Score})
		}
	}
	return out, nil
}

// Favorites exposes the favorites set.
func (c *Catalog) Favorites() *store.Favorites {
	return c.favorites
}

// Profiles exposes the filter profile manager.
func (c *Catalog) Profiles() *filter.ProfileManager {
	return c.profiles
}

// ApplyProfile activates a profile and returns the repositories it matches.
func (c *Catalog) ApplyProfile(id string) ([]domain.Repository, error) {
	return c.profiles.Apply(id, c.all())
}

// ProfileStatistics summarizes the repositories a profile matches.
func (c *Catalog) ProfileStatistics(id string) (filter.ProfileStats, error) {
	return c.profiles.Statistics(id, c.all())
}

// CacheStats reports on the snapshot file. ok is false when caching is disabled.
func (c *Catalog) CacheStats() (cache.Stats, bool) {
	if c.cache == nil {
		return cache.Stats{}, false
	}
	return c.cache.Stats(c.currentRoots()), true
}

// Subscribe returns a channel of catalog events and a function that ends the
// subscription. Events are dropped while the channel buffer is full.
func (c *Catalog) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.subscribe(buffer)
}

// IsScanning reports whether a scan is in flight.
func (c *Catalog) IsScanning() bool {
	return c.scanning.Load()
}

// Close releases the search index and ends all subscriptions.
func (c *Catalog) Close() error {
	c.events.close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index != nil {
		if err := c.index.Close(); err != nil {
			return fmt.Errorf("failed to close index: %w", err)
		}
		c.index = nil
	}
	return nil
}

// replace swaps in a new repository table, carrying user state over from the
// previous table and applying persisted favorites. It returns the new size.
func (c *Catalog) replace(repos []domain.Repository, roots []string, scannedAt time.Time) int {
	next := make(map[string]domain.Repository, len(repos))

	c.mu.RLock()
	for _, r := range repos {
		if prev, ok := c.repos[r.ID]; ok {
			r = mergeUserState(r, prev)
		}
		r.IsFavorite = c.favorites.Contains(r.ID)
		next[r.ID] = r
	}
	c.mu.RUnlock()

	index, err := newIndex(slices.Collect(maps.Values(next)))
	if err != nil {
		slog.Warn("Failed to rebuild search index", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A SetFavorite between the snapshot above and this swap wrote to the old table
	for id, r := range next {
		if fav := c.favorites.Contains(id); fav != r.IsFavorite {
			r.IsFavorite = fav
			next[id] = r
		}
	}
	c.repos = next
	c.roots = append([]string(nil), roots...)
	if !scannedAt.IsZero() {
		c.lastScan = scannedAt
	}
	if index != nil {
		if c.index != nil {
			_ = c.index.Close()
		}
		c.index = index
	}
	return len(next)
}

// mergeUserState keeps the user-owned attributes of prev on a freshly built repository.
func mergeUserState(fresh, prev domain.Repository) domain.Repository {
	fresh.DisplayName = prev.DisplayName
	fresh.Tags = append([]string{}, prev.Tags...)
	fresh.IsArchived = prev.IsArchived
	fresh.AccessCount = prev.AccessCount
	if !prev.LastAccessed.IsZero() {
		fresh.LastAccessed = prev.LastAccessed
	}
	if !prev.CreatedAt.IsZero() {
		fresh.CreatedAt = prev.CreatedAt
	}
	return fresh
}

// all returns clones of every entry ordered by ID.
func (c *Catalog) all() []domain.Repository {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Repository, 0, len(c.repos))
	for _, r := range c.repos {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Repository) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (c *Catalog) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.repos)
}

func (c *Catalog) currentRoots() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roots
}

func (c *Catalog) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = c.now()
	}
	c.events.publish(e)
}

package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, root, name string) domain.Repository {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	return domain.Repository{
		ID:       domain.RepositoryID(dir),
		Name:     name,
		Path:     dir,
		GitInfo:  domain.MinimalGitInfo(),
		Metadata: domain.EmptyMetadata(),
		Tags:     []string{},
	}
}

func ids(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestLoad_Missing(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), DefaultFilename), 0)
	assert.Nil(t, c.Load([]string{"/src"}))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	root := t.TempDir()
	a := newRepo(t, root, "a")
	b := newRepo(t, root, "b")
	b.IsFavorite = true
	b.GitInfo.Owner = domain.ExternalOwner("acme", "https://github.com/acme")

	c := New(filepath.Join(t.TempDir(), "cache", DefaultFilename), time.Hour)
	c.Save([]string{root}, []domain.Repository{a, b})

	entries := c.Load([]string{root})
	require.Len(t, entries, 2)
	assert.Equal(t, []string{a.ID, b.ID}, ids(entries))
	assert.True(t, entries[1].IsFavorite)
	assert.Equal(t, "acme", entries[1].GitInfo.Owner.Name)
	assert.Positive(t, entries[0].DirectoryLastModified)
	assert.Positive(t, entries[0].CacheTimestamp)
}

func TestLoad_RootSetComparison(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), DefaultFilename), time.Hour)
	c.Save([]string{"/src/a", "/src/b"}, nil)

	assert.NotNil(t, c.Load([]string{"/src/b", "/src/a"}), "reordered set is still valid")
	assert.NotNil(t, c.Load([]string{"/src/a/", "/src/b"}), "trailing separator is normalized")
	assert.Nil(t, c.Load([]string{"/src/a"}))
	assert.Nil(t, c.Load([]string{"/src/a", "/src/c"}))
	assert.Nil(t, c.Load(nil))
}

func TestLoad_EmptySnapshotIsValid(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), DefaultFilename), time.Hour)
	c.Save(nil, nil)

	entries := c.Load(nil)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestLoad_VersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	doc := Document{Version: "0.9.0", Timestamp: time.Now().UnixMilli(), TargetDirectories: []string{"/src"}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	assert.Nil(t, New(path, time.Hour).Load([]string{"/src"}))
}

func TestLoad_Expired(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), DefaultFilename), time.Hour)
	c.Save([]string{"/src"}, nil)

	c.now = func() time.Time { return time.Now().Add(59 * time.Minute) }
	assert.NotNil(t, c.Load([]string{"/src"}))

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Nil(t, c.Load([]string{"/src"}))
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	assert.Nil(t, New(path, time.Hour).Load(nil))
}

func TestSave_FailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	c := New(filepath.Join(blocker, DefaultFilename), time.Hour)
	assert.NotPanics(t, func() { c.Save(nil, nil) })
	assert.Nil(t, c.Load(nil))
}

func TestUpdateOne(t *testing.T) {
	root := t.TempDir()
	a := newRepo(t, root, "a")
	b := newRepo(t, root, "b")

	c := New(filepath.Join(t.TempDir(), DefaultFilename), time.Hour)
	roots := []string{root}
	c.Save(roots, []domain.Repository{a})

	a.IsFavorite = true
	c.UpdateOne(roots, a)
	c.UpdateOne(roots, b)

	entries := c.Load(roots)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{a.ID, b.ID}, ids(entries))
	assert.True(t, entries[0].IsFavorite)
}

func TestUpdateOne_WithoutSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	c := New(path, time.Hour)

	c.UpdateOne([]string{"/src"}, newRepo(t, t.TempDir(), "a"))

	assert.NoFileExists(t, path)
}

func TestCleanup(t *testing.T) {
	root := t.TempDir()
	a := newRepo(t, root, "a")
	b := newRepo(t, root, "b")
	roots := []string{root}

	c := New(filepath.Join(t.TempDir(), DefaultFilename), time.Hour)
	c.Save(roots, []domain.Repository{a, b})
	c.Cleanup(roots, []string{b.Path})

	assert.Equal(t, []string{b.ID}, ids(c.Load(roots)))
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	c := New(path, time.Hour)
	c.Save(nil, nil)
	require.FileExists(t, path)

	c.Clear()
	assert.NoFileExists(t, path)
	assert.NotPanics(t, c.Clear)
}

func TestStats(t *testing.T) {
	root := t.TempDir()
	c := New(filepath.Join(t.TempDir(), DefaultFilename), time.Hour)

	assert.Equal(t, Stats{}, c.Stats(nil))

	c.Save([]string{root}, []domain.Repository{newRepo(t, root, "a"), newRepo(t, root, "b")})

	stats := c.Stats([]string{root})
	assert.True(t, stats.Exists)
	assert.Equal(t, 2, stats.RepositoryCount)
	assert.Positive(t, stats.Size)
	require.NotNil(t, stats.LastUpdated)

	assert.Zero(t, c.Stats([]string{"/elsewhere"}).RepositoryCount)
}

func TestIsDirectoryChanged(t *testing.T) {
	root := t.TempDir()
	c := New(filepath.Join(t.TempDir(), DefaultFilename), time.Hour)
	e := c.entry(newRepo(t, root, "a"))

	assert.False(t, IsDirectoryChanged(e))

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(e.Path, later, later))
	assert.True(t, IsDirectoryChanged(e))

	require.NoError(t, os.RemoveAll(e.Path))
	assert.True(t, IsDirectoryChanged(e))
}

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "cache.lock")
	first := NewFileLock(path)
	second := NewFileLock(path)

	require.NoError(t, first.Lock(context.Background(), time.Second))
	assert.True(t, first.Held())

	err := second.Lock(context.Background(), 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, second.Held())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, second.Lock(ctx, time.Second), context.Canceled)

	require.NoError(t, first.Unlock())
	require.NoError(t, second.Lock(context.Background(), time.Second))
	require.NoError(t, second.Unlock())
	assert.NoError(t, second.Unlock())
}

package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func stores(t *testing.T) map[string]KeyValueStore {
	t.Helper()
	bolt, err := OpenBolt(filepath.Join(t.TempDir(), "nested", DefaultFilename))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	return map[string]KeyValueStore{
		"memory": NewMemory(),
		"bolt":   bolt,
	}
}

func TestKeyValueStore_GetSet(t *testing.T) {
	for name, kv := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var got record
			found, err := kv.Get("missing", &got)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, kv.Set("k", record{Name: "a", Count: 1}))
			require.NoError(t, kv.Set("k", record{Name: "b", Count: 2}))

			found, err = kv.Get("k", &got)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, record{Name: "b", Count: 2}, got)
		})
	}
}

func TestKeyValueStore_DecodeError(t *testing.T) {
	for name, kv := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Set("k", "a string"))

			var got record
			found, err := kv.Get("k", &got)
			assert.True(t, found)
			assert.Error(t, err)
		})
	}
}

func TestBolt_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)

	first, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(FavoritesKey, []string{"/src/a"}))
	require.NoError(t, first.Close())

	second, err := OpenBolt(path)
	require.NoError(t, err)
	defer second.Close()

	var got []string
	found, err := second.Get(FavoritesKey, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"/src/a"}, got)
}

func TestBolt_SharedPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)

	server, err := OpenBolt(path)
	require.NoError(t, err)
	defer server.Close()

	cli, err := OpenBolt(path)
	require.NoError(t, err, "a second store on the same path must open while the first is open")
	defer cli.Close()

	require.NoError(t, server.Set(FavoritesKey, []string{"/src/a"}))

	var got []string
	found, err := cli.Get(FavoritesKey, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"/src/a"}, got)

	require.NoError(t, cli.Set(FavoritesKey, []string{"/src/b"}))
	_, err = server.Get(FavoritesKey, &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/b"}, got)
}

func TestBolt_Closed(t *testing.T) {
	kv, err := OpenBolt(filepath.Join(t.TempDir(), DefaultFilename))
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	var got []string
	_, err = kv.Get(FavoritesKey, &got)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, kv.Set(FavoritesKey, got), ErrClosed)
}

func TestFavorites(t *testing.T) {
	kv := NewMemory()
	f := NewFavorites(kv)

	changed, err := f.Add("/src/b")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.Add("/src/b")
	require.NoError(t, err)
	assert.False(t, changed)

	now, err := f.Toggle("/src/a")
	require.NoError(t, err)
	assert.True(t, now)
	assert.Equal(t, []string{"/src/a", "/src/b"}, f.Export())
	assert.Equal(t, 2, f.Count())

	now, err = f.Toggle("/src/a")
	require.NoError(t, err)
	assert.False(t, now)
	assert.False(t, f.Contains("/src/a"))

	changed, err = f.Remove("/src/missing")
	require.NoError(t, err)
	assert.False(t, changed)

	reloaded := NewFavorites(kv)
	assert.Equal(t, []string{"/src/b"}, reloaded.Export())
}

func TestFavorites_Reload(t *testing.T) {
	kv := NewMemory()
	writer := NewFavorites(kv)
	reader := NewFavorites(kv)

	_, err := writer.Add("/src/a")
	require.NoError(t, err)
	assert.False(t, reader.Contains("/src/a"))

	reader.Reload()
	assert.True(t, reader.Contains("/src/a"))
	assert.Equal(t, 1, reader.Count())
}

type readOnlyStore struct {
	KeyValueStore
}

func (readOnlyStore) Set(string, any) error {
	return errors.New("read-only")
}

func TestFavorites_FailedWriteKeepsSet(t *testing.T) {
	kv := NewMemory()
	_, err := NewFavorites(kv).Add("/src/a")
	require.NoError(t, err)

	f := NewFavorites(readOnlyStore{kv})

	_, err = f.Add("/src/b")
	assert.Error(t, err)
	now, err := f.Toggle("/src/a")
	assert.Error(t, err)
	assert.True(t, now)
	assert.Error(t, f.Clear())
	assert.Error(t, f.Import([]string{"/src/c"}))

	assert.Equal(t, []string{"/src/a"}, f.Export())
}

func TestFavorites_ImportClear(t *testing.T) {
	kv := NewMemory()
	f := NewFavorites(kv)

	require.NoError(t, f.Import([]string{"/x", "/y", "/x"}))
	assert.Equal(t, 2, f.Count())
	assert.True(t, f.Contains("/y"))

	require.NoError(t, f.Clear())
	assert.Zero(t, f.Count())
	assert.Empty(t, NewFavorites(kv).Export())
}

func TestFavorites_CorruptRecord(t *testing.T) {
	kv := NewMemory()
	require.NoError(t, kv.Set(FavoritesKey, map[string]int{"a": 1}))

	f := NewFavorites(kv)
	assert.Zero(t, f.Count())
}

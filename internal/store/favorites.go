package store

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Favorites is a persisted set of favorite repository IDs.
type Favorites struct {
	kv  KeyValueStore
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewFavorites loads the favorites set from kv. An unreadable record starts empty.
func NewFavorites(kv KeyValueStore) *Favorites {
	f := &Favorites{kv: kv, ids: make(map[string]struct{})}
	f.Reload()
	return f
}

// Reload re-reads the set from the store, picking up changes made by other
// processes sharing it. The current set is kept when the record is unreadable.
func (f *Favorites) Reload() {
	f.mu.Lock()
	defer f.mu.Unlock()

	var stored []string
	if _, err := f.kv.Get(FavoritesKey, &stored); err != nil {
		slog.Warn("Failed to load favorites", "error", err)
		return
	}

	f.ids = make(map[string]struct{}, len(stored))
	for _, id := range stored {
		f.ids[id] = struct{}{}
	}
	slog.Debug("Loaded favorites", "count", len(f.ids))
}

// Contains reports whether id is a favorite.
func (f *Favorites) Contains(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.ids[id]
	return ok
}

// Set adds or removes id. It returns true if the set changed.
func (f *Favorites) Set(id string, favorite bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, present := f.ids[id]
	if present == favorite {
		return false, nil
	}
	err := f.commit(func() {
		if favorite {
			f.ids[id] = struct{}{}
		} else {
			delete(f.ids, id)
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add marks id as a favorite.
func (f *Favorites) Add(id string) (bool, error) {
	return f.Set(id, true)
}

// Remove unmarks id.
func (f *Favorites) Remove(id string) (bool, error) {
	return f.Set(id, false)
}

// Toggle flips id and returns its new state. A failed write leaves the state unchanged.
func (f *Favorites) Toggle(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, present := f.ids[id]
	err := f.commit(func() {
		if present {
			delete(f.ids, id)
		} else {
			f.ids[id] = struct{}{}
		}
	})
	if err != nil {
		return present, err
	}
	return !present, nil
}

// Clear removes every favorite.
func (f *Favorites) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commit(func() { f.ids = make(map[string]struct{}) })
}

// Import replaces the set with ids.
func (f *Favorites) Import(ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commit(func() {
		f.ids = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			f.ids[id] = struct{}{}
		}
	})
}

// Export returns the favorite IDs in sorted order.
func (f *Favorites) Export() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sorted()
}

// Count returns the number of favorites.
func (f *Favorites) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

func (f *Favorites) sorted() []string {
	ids := make([]string, 0, len(f.ids))
	for id := range f.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// commit applies change and persists it, restoring the previous set when the
// write fails. Must be called with mu held.
func (f *Favorites) commit(change func()) error {
	prev := maps.Clone(f.ids)
	change()
	if err := f.save(); err != nil {
		f.ids = prev
		return err
	}
	return nil
}

// save must be called with mu held.
func (f *Favorites) save() error {
	return f.kv.Set(FavoritesKey, f.sorted())
}

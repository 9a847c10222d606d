package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// DefaultFilename is the default database filename
const DefaultFilename = "state.db"

const boltBucketState = "state" // key: store key -> JSON value

// boltOpenTimeout bounds the wait for another process's file lock
const boltOpenTimeout = 2 * time.Second

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Bolt is a KeyValueStore backed by a bbolt database file.
//
// The file is opened for the duration of each Get or Set only, so a server
// and CLI commands can share one path: bbolt holds an exclusive lock on the
// file while it is open.
type Bolt struct {
	path   string
	mu     sync.Mutex
	closed bool
}

// OpenBolt creates the database at path if needed and returns a store bound to it.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	b := &Bolt{path: path}
	err := b.withDB(false, func(db *bbolt.DB) error {
		return db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists([]byte(boltBucketState))
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return b, nil
}

// Path returns the database file path.
func (b *Bolt) Path() string {
	return b.path
}

// withDB opens the database, runs fn and closes it again
func (b *Bolt) withDB(readOnly bool, fn func(*bbolt.DB) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	db, err := bbolt.Open(b.path, 0600, &bbolt.Options{Timeout: boltOpenTimeout, ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	return fn(db)
}

func (b *Bolt) Get(key string, dst any) (bool, error) {
	var found bool

	err := b.withDB(true, func(db *bbolt.DB) error {
		return db.View(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket([]byte(boltBucketState))
			if bucket == nil {
				return nil
			}
			v := bucket.Get([]byte(key))
			if v == nil {
				return nil
			}
			found = true
			return json.Unmarshal(v, dst)
		})
	})
	if err != nil {
		return found, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return found, nil
}

func (b *Bolt) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	err = b.withDB(false, func(db *bbolt.DB) error {
		return db.Update(func(tx *bbolt.Tx) error {
			bucket, err := tx.CreateBucketIfNotExists([]byte(boltBucketState))
			if err != nil {
				return err
			}
			return bucket.Put([]byte(key), data)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Close marks the store closed. Later operations return ErrClosed.
func (b *Bolt) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

package offline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

// Cache keeps the last decoded state of each screen on disk so a reopened
// screen renders before its first live snapshot arrives.
type Cache struct {
	db *pebble.DB
}

func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("unable to open offline cache: %v", err)
	}
	return &Cache{db: db}, nil
}

// OpenInMemory opens a cache that lives only as long as the process.
func OpenInMemory() (*Cache, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func (v *Cache) Close() error {
	if v == nil || v.db == nil {
		return nil
	}
	return v.db.Close()
}

// Put stores value under key. Writes are not synced, losing the tail of
// the cache on a crash only costs a slower first render.
func (v *Cache) Put(key string, value any) error {
	raw, err := jsoniter.Marshal(value)
	if err != nil {
		return err
	}
	return v.db.Set([]byte(key), raw, pebble.NoSync)
}

// Get fits the value stored under key into out and reports whether it existed.
func (v *Cache) Get(key string, out any) (bool, error) {
	raw, closer, err := v.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := jsoniter.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("unable to decode cached %s: %v", key, err)
	}
	return true, nil
}

func (v *Cache) Delete(key string) error {
	return v.db.Delete([]byte(key), pebble.NoSync)
}

// Flush persists the unsynced writes.
func (v *Cache) Flush() error {
	return v.db.Flush()
}

// DoAutoFlush is the cron entry of Flush.
func DoAutoFlush(cache *Cache) func() {
	return func() {
		if err := cache.Flush(); err != nil {
			log.Warn().Err(err).Msg("An error occurred when flushing offline cache...")
		}
	}
}

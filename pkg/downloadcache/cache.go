// Package downloadcache persists short-lived download results under short
// ids so follow-up commands can refer back to them.
package downloadcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultTTL is how long an entry survives.
	DefaultTTL = time.Hour
	// IDLength is the length of generated ids.
	IDLength = 8

	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// ErrNotFound is returned by Get for missing or expired ids.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one persisted record. Timestamp is in milliseconds since epoch.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Config configures a Cache.
type Config struct {
	Path string
	TTL  time.Duration
	// Now is the clock; tests override it.
	Now func() time.Time
}

// Cache is a JSON-file backed key/value store. Every mutation rewrites the
// whole file. A sibling ".lock" file serializes access across processes.
type Cache struct {
	path   string
	ttl    time.Duration
	now    func() time.Time
	lock   *flock.Flock
	mu     sync.Mutex
	logger zerolog.Logger
}

// New opens the cache at cfg.Path, creating the file when missing.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.Path == "" {
		return nil, errors.New("cache path is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		path:   cfg.Path,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		lock:   flock.New(cfg.Path + ".lock"),
		logger: logger.With().Str("component", "downloadcache").Logger(),
	}

	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		if err := c.write(map[string]Entry{}); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Path returns the backing file.
func (c *Cache) Path() string {
	return c.path
}

// NewID generates a fresh short id.
func NewID() (string, error) {
	return gonanoid.Generate(idAlphabet, IDLength)
}

// Put sweeps expired entries, then stores data under id with the current
// time.
func (c *Cache) Put(id string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	return c.update(func(entries map[string]Entry) bool {
		c.sweep(entries)
		entries[id] = Entry{Data: raw, Timestamp: c.now().UnixMilli()}
		return true
	})
}

// Get sweeps expired entries, then decodes the entry stored under id into
// out. It returns ErrNotFound when there is none.
func (c *Cache) Get(id string, out any) error {
	var (
		entry Entry
		found bool
	)
	err := c.update(func(entries map[string]Entry) bool {
		changed := c.sweep(entries) > 0
		entry, found = entries[id]
		return changed
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	if err := json.Unmarshal(entry.Data, out); err != nil {
		return fmt.Errorf("failed to decode cache entry %s: %w", id, err)
	}
	return nil
}

// Delete removes id. Missing ids are ignored.
func (c *Cache) Delete(id string) error {
	return c.update(func(entries map[string]Entry) bool {
		if _, ok := entries[id]; !ok {
			return false
		}
		delete(entries, id)
		return true
	})
}

// Sweep drops entries older than the TTL and returns how many were removed.
func (c *Cache) Sweep() (int, error) {
	var removed int
	err := c.update(func(entries map[string]Entry) bool {
		removed = c.sweep(entries)
		return removed > 0
	})
	if removed > 0 {
		c.logger.Debug().Int("removed", removed).Msg("Swept download cache")
	}
	return removed, err
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() (int, error) {
	var n int
	err := c.update(func(entries map[string]Entry) bool {
		n = len(entries)
		return false
	})
	return n, err
}

func (c *Cache) sweep(entries map[string]Entry) int {
	cutoff := c.now().Add(-c.ttl).UnixMilli()
	removed := 0
	for id, e := range entries {
		if e.Timestamp < cutoff {
			delete(entries, id)
			removed++
		}
	}
	return removed
}

// update runs fn on the current contents under both locks and writes the
// file back when fn reports a change.
func (c *Cache) update(fn func(entries map[string]Entry) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock cache: %w", err)
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to unlock cache")
		}
	}()

	entries := c.read()
	if !fn(entries) {
		return nil
	}
	return c.write(entries)
}

// read loads the file. Missing or corrupt files read as empty.
func (c *Cache) read() map[string]Entry {
	entries := make(map[string]Entry)

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Str("path", c.path).Msg("Failed to read cache")
		}
		return entries
	}
	if len(data) == 0 {
		return entries
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("Corrupt cache file, starting empty")
		return make(map[string]Entry)
	}
	return entries
}

func (c *Cache) write(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close cache: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace cache: %w", err)
	}
	return nil
}

package mbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/digitaljerry/mbus/metrics"
	"github.com/digitaljerry/mbus/model"
	"github.com/digitaljerry/mbus/storage"
)

const DefaultCacheTTL = 60 * time.Second

// Cache of the last successful resolution per stop/route pair.
//
// An entry is served only while younger than TTL, and only if its
// source URL is the one the current upstream would produce. The
// latter lets the cache heal itself when the upstream provider moves
// to a new API generation: entries pointing at the old one are
// evicted on sight.
type Cache struct {
	TTL     time.Duration
	Metrics *metrics.Collector

	storage    storage.Storage
	currentURL func(stopID string, route string) string
	locks      sync.Map
}

// Creates a Cache on top of the given storage. currentURL returns the
// source URL a fresh resolution of a pair would carry.
func NewCache(s storage.Storage, currentURL func(stopID string, route string) string) *Cache {
	return &Cache{
		TTL:        DefaultCacheTTL,
		storage:    s,
		currentURL: currentURL,
	}
}

// Serializes access to a single key.
func (c *Cache) lock(key string) func() {
	m, _ := c.locks.LoadOrStore(key, &sync.Mutex{})
	mutex := m.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

// Retrieves a usable entry for the pair. Expired entries and entries
// of a stale shape are evicted, and reported as absent.
func (c *Cache) Get(stopID string, route string, now time.Time) (*storage.CacheEntry, bool) {
	key := model.StopRoutePair{StopID: stopID, Route: route}.Key()
	defer c.lock(key)()

	entry, err := c.storage.GetEntry(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read cache entry")
		return nil, false
	}
	if entry == nil {
		return nil, false
	}

	reason := ""
	if now.Sub(entry.Timestamp) >= c.TTL {
		reason = "expired"
	} else if c.currentURL != nil && entry.Payload.SourceURL != c.currentURL(stopID, route) {
		reason = "shape"
	}

	if reason != "" {
		err = c.storage.DeleteEntry(key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to evict cache entry")
		}
		c.Metrics.CacheEvicted(reason)
		log.Debug().Str("key", key).Str("reason", reason).Msg("Evicted cache entry")
		return nil, false
	}

	return entry, true
}

// Stores a resolution, overwriting any existing entry for the pair.
func (c *Cache) Put(stopID string, route string, resolution model.ScheduleResolution, now time.Time) error {
	key := model.StopRoutePair{StopID: stopID, Route: route}.Key()
	defer c.lock(key)()

	err := c.storage.WriteEntry(&storage.CacheEntry{
		Key:       key,
		Timestamp: now,
		Payload:   resolution,
	})
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Evicts the entry for the pair, if any.
func (c *Cache) Invalidate(stopID string, route string) error {
	key := model.StopRoutePair{StopID: stopID, Route: route}.Key()
	defer c.lock(key)()

	err := c.storage.DeleteEntry(key)
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	c.Metrics.CacheEvicted("invalidated")
	return nil
}

// Evicts all entries.
func (c *Cache) Clear() error {
	err := c.storage.Clear()
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// All stored entries, usable or not.
func (c *Cache) Entries() ([]*storage.CacheEntry, error) {
	entries, err := c.storage.ListEntries()
	if err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}
	return entries, nil
}

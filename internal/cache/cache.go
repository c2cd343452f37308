// Package cache provides caching for rendered maps and query results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	MapCacheSizeMB int
	MapTTL         time.Duration
	QueryCacheSize int
}

// Manager manages map and query caches.
type Manager struct {
	mapCache   *bigcache.BigCache
	queryCache *lru.Cache[string, int]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.MapTTL <= 0 {
		cfg.MapTTL = 30 * time.Minute
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = 1000
	}

	mapCacheConfig := bigcache.Config{
		Shards:             16,
		LifeWindow:         cfg.MapTTL,
		CleanWindow:        cfg.MapTTL / 2,
		MaxEntriesInWindow: 256,
		MaxEntrySize:       256 * 1024, // 256KB per map image
		HardMaxCacheSize:   cfg.MapCacheSizeMB,
		Verbose:            false,
	}

	mapCache, err := bigcache.New(context.Background(), mapCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create map cache: %w", err)
	}

	queryCache, err := lru.New[string, int](cfg.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Manager{
		mapCache:   mapCache,
		queryCache: queryCache,
	}, nil
}

// GetMap retrieves a rendered map from cache.
func (m *Manager) GetMap(key string) ([]byte, bool) {
	data, err := m.mapCache.Get(key)
	if err != nil {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return data, true
}

// SetMap stores a rendered map in cache.
func (m *Manager) SetMap(key string, data []byte) error {
	return m.mapCache.Set(key, data)
}

// GetCount retrieves a cached query result count.
func (m *Manager) GetCount(key string) (int, bool) {
	n, ok := m.queryCache.Get(key)
	if ok {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	return n, ok
}

// SetCount stores a query result count.
func (m *Manager) SetCount(key string, n int) {
	m.queryCache.Add(key, n)
}

// MapKey generates a cache key for a map of the given sample sets. Order of
// the sample sets does not matter.
func MapKey(scope string, sampleSets []string) string {
	base := "map:" + scope
	if sampleSets == nil {
		return base
	}
	if len(sampleSets) == 0 {
		return base + ":none"
	}

	sorted := append([]string(nil), sampleSets...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(base))
	for _, s := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	return base + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// QueryKey generates a cache key for a compiled query expression.
func QueryKey(expr string) string {
	return "count:" + strings.TrimSpace(expr)
}

// Hits returns the number of cache hits across both caches.
func (m *Manager) Hits() int64 { return m.hits.Load() }

// Misses returns the number of cache misses across both caches.
func (m *Manager) Misses() int64 { return m.misses.Load() }

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"map_cache_len":   m.mapCache.Len(),
		"map_cache_cap":   m.mapCache.Capacity(),
		"query_cache_len": m.queryCache.Len(),
		"hits":            m.hits.Load(),
		"misses":          m.misses.Load(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.mapCache.Close()
}

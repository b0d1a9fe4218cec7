// Package cache keeps derived per-client views in a freecache ring so repeat
// dashboard reads skip the full history scan.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	megabyte           = 1024 * 1024
	defaultSize        = 16 * megabyte
	defaultExpiration  = 5 * time.Minute
	minimumSizeInBytes = 512 * 1024 // freecache floor
)

// Kinds of cached views. All of them are invalidated together.
const (
	KindProgress     = "progress"
	KindAchievements = "achievements"
)

var kinds = []string{KindProgress, KindAchievements}

type ProgressCache struct {
	cache     *freecache.Cache
	expireSec int

	// mu orders Set against Invalidate; generations counts invalidations
	// per client so a view read before a write is never stored after it.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewProgressCache builds a cache of sizeBytes with entries living ttl.
// Zero values fall back to defaults.
func NewProgressCache(sizeBytes int, ttl time.Duration) *ProgressCache {
	if sizeBytes <= 0 {
		sizeBytes = defaultSize
	}
	if sizeBytes < minimumSizeInBytes {
		sizeBytes = minimumSizeInBytes
	}
	if ttl <= 0 {
		ttl = defaultExpiration
	}
	expire := int(ttl / time.Second)
	if expire < 1 {
		expire = 1
	}
	return &ProgressCache{
		cache:       freecache.NewCache(sizeBytes),
		expireSec:   expire,
		generations: map[string]uint64{},
	}
}

func key(kind, clientID string) []byte {
	return []byte(fmt.Sprintf("%s::%s", kind, clientID))
}

// Get decodes the cached view into dst. It reports false on a miss or when
// the entry cannot be decoded.
func (c *ProgressCache) Get(kind, clientID string, dst any) bool {
	raw, err := c.cache.Get(key(kind, clientID))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Errorf("failed to unmarshal cached %s for client %s: %s", kind, clientID, err)
		c.cache.Del(key(kind, clientID))
		return false
	}
	log.Tracef("found %s for client %s in cache", kind, clientID)
	return true
}

// Generation returns the client's invalidation counter. Read it before
// loading the data a view is built from and pass it to Set.
func (c *ProgressCache) Generation(clientID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[clientID]
}

// Set stores a view built from data read at generation gen. The write is
// dropped when the client was invalidated since.
func (c *ProgressCache) Set(kind, clientID string, gen uint64, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Errorf("failed to marshal %s for client %s: %s", kind, clientID, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[clientID] != gen {
		log.Tracef("dropping stale %s for client %s", kind, clientID)
		return
	}
	if err := c.cache.Set(key(kind, clientID), raw, c.expireSec); err != nil {
		log.Errorf("failed to write %s cache for client %s: %s", kind, clientID, err)
	}
}

// Invalidate drops every view of a client. Call after any write that
// changes its history.
func (c *ProgressCache) Invalidate(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[clientID]++
	for _, kind := range kinds {
		c.cache.Del(key(kind, clientID))
	}
}

// Stats returns hits and misses since creation.
func (c *ProgressCache) Stats() (hits, misses int64) {
	return c.cache.HitCount(), c.cache.MissCount()
}

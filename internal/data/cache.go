package data

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultCacheTTL applies when GRIDSTATUS_CACHE_TTL is unset or invalid.
const DefaultCacheTTL = time.Hour

type cacheEntry struct {
	response  *GridStatusLMPResponse
	expiresAt time.Time
}

// ResponseCache keeps Grid Status responses in memory.
//
// It is meant for local development only: caching responses may conflict
// with the Grid Status terms of use, and CacheFromEnv never enables it when
// API_ENV=production.
type ResponseCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewResponseCache returns an empty cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResponseCache{store: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

var (
	envCache     *ResponseCache
	envCacheOnce sync.Once
)

// CacheFromEnv returns the process-wide cache when ENABLE_GRIDSTATUS_CACHE is
// "true" and API_ENV is not "production"; otherwise nil.
func CacheFromEnv() *ResponseCache {
	if os.Getenv("ENABLE_GRIDSTATUS_CACHE") != "true" {
		return nil
	}
	if os.Getenv("API_ENV") == "production" {
		return nil
	}
	envCacheOnce.Do(func() {
		ttl := DefaultCacheTTL
		if s := os.Getenv("GRIDSTATUS_CACHE_TTL"); s != "" {
			if parsed, err := time.ParseDuration(s); err == nil {
				ttl = parsed
			}
		}
		envCache = NewResponseCache(ttl)
		go envCache.cleanup(5 * time.Minute)
	})
	return envCache
}

// Get returns a cached response that has not expired. A nil cache misses.
func (c *ResponseCache) Get(key string) (*GridStatusLMPResponse, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[key]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.response, true
}

// Set stores a response. A nil cache ignores it.
func (c *ResponseCache) Set(key string, response *GridStatusLMPResponse) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = cacheEntry{response: response, expiresAt: c.now().Add(c.ttl)}
}

func (c *ResponseCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]cacheEntry)
}

// Purge drops expired entries and reports how many remain.
func (c *ResponseCache) Purge() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.store {
		if now.After(entry.expiresAt) {
			delete(c.store, key)
		}
	}
	return len(c.store)
}

func (c *ResponseCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		c.Purge()
	}
}

// CacheKey hashes the query parameters into a fixed-size key.
func CacheKey(params QueryLocationParams) string {
	raw := fmt.Sprintf("%s:%s:%s:%s:%s",
		params.DatasetID,
		params.LocationID,
		params.StartTime.UTC().Format(time.RFC3339),
		params.EndTime.UTC().Format(time.RFC3339),
		params.Timezone,
	)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

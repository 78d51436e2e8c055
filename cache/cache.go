package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/use-agent/sitelens/models"
)

const (
	// sweepInterval is how often stale reports are swept out.
	sweepInterval = 5 * time.Minute

	// maxReportAge bounds how long a report stays cached regardless of
	// any client's max_age_ms.
	maxReportAge = time.Hour
)

// entry holds a cached report with its creation timestamp.
type entry struct {
	response  *models.AnalyzeResponse
	createdAt time.Time
}

// Cache is an in-memory cache for analysis reports. It is safe for
// concurrent use. Freshness is the caller's choice per lookup, so one
// stored report can serve clients with different staleness tolerances.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
}

// New creates a Cache with the given maximum number of reports. A
// background goroutine sweeps out reports older than maxReportAge.
func New(maxEntries int) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
	}

	go c.sweepLoop()
	return c
}

// Key generates a cache key from the request parameters that change the
// report: the URL, the device profile, and the wait strategy.
func Key(url string, mobile bool, waitUntil string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatBool(mobile)))
	h.Write([]byte("|"))
	h.Write([]byte(waitUntil))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached report if it exists and is younger than maxAge.
// maxAge is in milliseconds. If maxAge <= 0, no cache lookup is performed.
// Returns the report and whether it was a cache hit.
func (c *Cache) Get(key string, maxAgeMs int) (*models.AnalyzeResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	return e.response, true
}

// Set stores a report in the cache. If the cache is at capacity, a
// random entry is evicted to make room.
func (c *Cache) Set(key string, resp *models.AnalyzeResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		response:  resp,
		createdAt: time.Now(),
	}
}

// sweepLoop periodically evicts reports past their maximum age.
func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-maxReportAge)
		evicted := 0
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
				evicted++
			}
		}
		c.mu.Unlock()
		if evicted > 0 {
			slog.Debug("cache: swept expired reports", "count", evicted)
		}
	}
}

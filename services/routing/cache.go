package routing

import (
	"sync"
	"time"

	"github.com/routelab/ai-gateway/metrics"
)

// DefaultLoadCacheTTL bounds how long provider load figures are reused
// before the database is queried again.
const DefaultLoadCacheTTL = 5 * time.Minute

// loadCache holds one shared snapshot of provider loads with a fetch
// timestamp. All methods are safe for concurrent use.
type loadCache struct {
	mu        sync.Mutex
	loads     map[string]float64
	fetchedAt time.Time
	ttl       time.Duration
}

func newLoadCache(ttl time.Duration) *loadCache {
	if ttl <= 0 {
		ttl = DefaultLoadCacheTTL
	}
	return &loadCache{ttl: ttl}
}

// Get returns a copy of the cached loads when the entry is still fresh.
func (c *loadCache) Get() (map[string]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loads == nil || time.Since(c.fetchedAt) >= c.ttl {
		return nil, false
	}

	copied := make(map[string]float64, len(c.loads))
	for k, v := range c.loads {
		copied[k] = v
	}
	return copied, true
}

// Set stores a fresh snapshot and restarts the TTL clock.
func (c *loadCache) Set(loads map[string]float64) {
	copied := make(map[string]float64, len(loads))
	for k, v := range loads {
		copied[k] = v
	}

	c.mu.Lock()
	c.loads = copied
	c.fetchedAt = time.Now()
	c.mu.Unlock()
}

// Invalidate drops the cached snapshot so the next Get misses.
func (c *loadCache) Invalidate() {
	c.mu.Lock()
	c.loads = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()

	metrics.LoadCacheEvents.WithLabelValues("invalidate").Inc()
}

// SweepExpired drops the snapshot only when it is past the TTL, reporting
// whether anything was dropped. Fresh entries stay untouched.
func (c *loadCache) SweepExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loads == nil || time.Since(c.fetchedAt) < c.ttl {
		return false
	}
	c.loads = nil
	c.fetchedAt = time.Time{}
	return true
}

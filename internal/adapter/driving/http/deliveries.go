package httphandler

import (
	"sync"
	"time"
)

// deliveryTTL is how long a delivery id is remembered for duplicate
// suppression.
const deliveryTTL = time.Hour

// deliveryCache remembers recently seen X-GitHub-Delivery ids.
type deliveryCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func newDeliveryCache(ttl time.Duration, now func() time.Time) *deliveryCache {
	return &deliveryCache{ttl: ttl, now: now, seen: make(map[string]time.Time)}
}

// markSeen records id and reports whether it was already recorded within
// the TTL.
func (c *deliveryCache) markSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, at := range c.seen {
		if now.Sub(at) > c.ttl {
			delete(c.seen, k)
		}
	}

	if _, ok := c.seen[id]; ok {
		return true
	}
	c.seen[id] = now
	return false
}

// forget removes id so a redelivery is processed again.
func (c *deliveryCache) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, id)
}

package httpapi

import (
	"sync"
	"time"
)

// Cooldown rate-limits repeated actions per buyer. A zero interval disables
// the limit.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
}

func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether the buyer may act now and, if so, starts a new
// cooldown window.
func (c *Cooldown) Allow(buyer string) bool {
	if c.interval <= 0 {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if last, ok := c.last[buyer]; ok && now.Sub(last) < c.interval {
		return false
	}
	c.last[buyer] = now
	return true
}

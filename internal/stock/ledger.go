package stock

import (
	"sync"

	"github.com/storefrontlabs/reserveflow/internal/catalog"
)

// Key identifies a stock counter by catalog group and item.
type Key struct {
	Group string
	Item  string
}

// Ledger holds the remaining-unit counters shared by all buyers. Reserve and
// Release are the only mutations and each is a single critical section, so
// two buyers racing for the last unit cannot both pass the stock check.
type Ledger struct {
	mu        sync.Mutex
	remaining map[Key]int
}

func NewLedger() *Ledger {
	return &Ledger{remaining: make(map[Key]int)}
}

// InitFromCatalog seeds the counters from each item's configured stock.
func (l *Ledger) InitFromCatalog(c *catalog.Catalog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, g := range c.Groups {
		for _, it := range g.Items {
			l.remaining[Key{Group: g.Key, Item: it.ID}] = it.Stock
		}
	}
}

func (l *Ledger) Remaining(group, item string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining[Key{Group: group, Item: item}]
}

// Reserve atomically checks that at least qty units remain and decrements.
// It reports whether the reservation succeeded; on failure nothing changes.
func (l *Ledger) Reserve(group, item string, qty int) bool {
	if qty <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := Key{Group: group, Item: item}
	if l.remaining[k] < qty {
		return false
	}
	l.remaining[k] -= qty
	return true
}

// Release returns qty units to the counter. Callers are responsible for
// releasing each reservation exactly once; the ledger does not clamp to the
// initial stock.
func (l *Ledger) Release(group, item string, qty int) {
	if qty <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remaining[Key{Group: group, Item: item}] += qty
}

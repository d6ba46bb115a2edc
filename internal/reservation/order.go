package reservation

import (
	"fmt"
	"time"
)

// Order is the per-scope purchase state. One order may exist per scope (the
// buyer's private channel) at a time. Pricing is computed once at creation and
// never recomputed from live catalog state.
type Order struct {
	ID            string    `json:"id"`
	Scope         string    `json:"scope"`
	Buyer         string    `json:"buyer"`
	Group         string    `json:"group"`
	Item          string    `json:"item"`
	Qty           int       `json:"qty"`
	UnitPrice     int64     `json:"unit_price"`
	Total         int64     `json:"total"`
	Method        string    `json:"method,omitempty"`
	Reserved      bool      `json:"reserved"`
	Locked        bool      `json:"locked"`
	Completed     bool      `json:"completed"`
	ReservedUntil time.Time `json:"reserved_until"`
	MessageID     string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Remaining is the time left until expiry, floored at zero.
func (o Order) Remaining(now time.Time) time.Duration {
	if d := o.ReservedUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Active reports whether the order still holds a reservation that can expire
// or be canceled.
func (o Order) Active() bool {
	return o.Reserved && !o.Completed
}

// FormatRemaining renders a duration as MM:SS for countdown display.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Session is a buyer's in-progress selection before a reservation exists.
// It is a UI-state cache only and is never authoritative for stock.
type Session struct {
	Buyer string `json:"buyer"`
	Scope string `json:"scope"`
	Group string `json:"group"`
	Item  string `json:"item"`
	Qty   int    `json:"qty"`
}

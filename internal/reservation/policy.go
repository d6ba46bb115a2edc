package reservation

import "time"

// Method is a configured payment method. Duration is the nominal reservation
// window for the method. Extends marks the slowest-settling method, which is
// granted a one-time deadline extension when it is chosen with less than its
// nominal window remaining; all other methods keep the first-come deadline.
type Method struct {
	Name     string
	Duration time.Duration
	Extends  bool
}

// Policy holds the reservation timing rules and selection limits.
type Policy struct {
	// DefaultReserve applies from order creation until a method is chosen.
	DefaultReserve time.Duration
	// Cooldown is the minimum interval between repeated buyer actions.
	Cooldown time.Duration
	// MaxQuantity caps the selectable quantity regardless of stock.
	MaxQuantity int
	Methods     []Method
}

func (p Policy) Method(name string) (Method, bool) {
	for _, m := range p.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// DefaultPolicy mirrors the stock storefront configuration: pix settles
// fastest, paypal is the default window, crypto settles slowest and is the
// only extending method.
func DefaultPolicy() Policy {
	return Policy{
		DefaultReserve: 10 * time.Minute,
		Cooldown:       3 * time.Second,
		MaxQuantity:    999,
		Methods: []Method{
			{Name: "pix", Duration: 5 * time.Minute},
			{Name: "paypal", Duration: 10 * time.Minute},
			{Name: "crypto", Duration: 15 * time.Minute, Extends: true},
		},
	}
}

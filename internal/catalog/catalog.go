package catalog

import "math"

type Item struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Stock           int    `json:"stock"`
	Price           int64  `json:"price"`
	DiscountPercent int    `json:"discount_percent"`
	Popular         bool   `json:"popular"`
}

// FinalPrice is the unit price after the item's discount, rounded to the
// nearest whole currency unit.
func (i Item) FinalPrice() int64 {
	return FinalPrice(i.Price, i.DiscountPercent)
}

type Group struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// PopularOrFirst returns the item flagged popular, or the first item when
// none is flagged. ok is false for an empty group.
func (g Group) PopularOrFirst() (Item, bool) {
	for _, it := range g.Items {
		if it.Popular {
			return it, true
		}
	}
	if len(g.Items) > 0 {
		return g.Items[0], true
	}
	return Item{}, false
}

type Catalog struct {
	Groups []Group `json:"groups"`
}

func (c *Catalog) Group(key string) (Group, bool) {
	for _, g := range c.Groups {
		if g.Key == key {
			return g, true
		}
	}
	return Group{}, false
}

func (c *Catalog) Item(groupKey, itemID string) (Item, bool) {
	g, ok := c.Group(groupKey)
	if !ok {
		return Item{}, false
	}
	for _, it := range g.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return Item{}, false
}

// FinalPrice applies a percentage discount to a price. The discount is
// clamped to [0, 100] before applying.
func FinalPrice(price int64, discountPercent int) int64 {
	d := discountPercent
	if d < 0 {
		d = 0
	}
	if d > 100 {
		d = 100
	}
	return int64(math.Round(float64(price) * (1 - float64(d)/100)))
}

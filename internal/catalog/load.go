package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a catalog from a JSON file and validates it.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	if err := Validate(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks structural invariants: non-empty groups, unique keys and
// item IDs, non-negative stock and prices, discounts within [0, 100].
func Validate(c *Catalog) error {
	if len(c.Groups) == 0 {
		return fmt.Errorf("catalog has no groups")
	}

	groupKeys := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		if g.Key == "" {
			return fmt.Errorf("group with empty key")
		}
		if groupKeys[g.Key] {
			return fmt.Errorf("duplicate group key %q", g.Key)
		}
		groupKeys[g.Key] = true

		if len(g.Items) == 0 {
			return fmt.Errorf("group %q has no items", g.Key)
		}

		itemIDs := make(map[string]bool, len(g.Items))
		for _, it := range g.Items {
			if it.ID == "" {
				return fmt.Errorf("group %q: item with empty id", g.Key)
			}
			if itemIDs[it.ID] {
				return fmt.Errorf("group %q: duplicate item id %q", g.Key, it.ID)
			}
			itemIDs[it.ID] = true

			if it.Stock < 0 {
				return fmt.Errorf("item %s/%s: negative stock", g.Key, it.ID)
			}
			if it.Price < 0 {
				return fmt.Errorf("item %s/%s: negative price", g.Key, it.ID)
			}
			if it.DiscountPercent < 0 || it.DiscountPercent > 100 {
				return fmt.Errorf("item %s/%s: discount percent out of range", g.Key, it.ID)
			}
		}
	}

	return nil
}

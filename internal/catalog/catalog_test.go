package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		name     string
		price    int64
		discount int
		want     int64
	}{
		{"no discount", 100, 0, 100},
		{"20 percent", 60, 20, 48},
		{"rounds up", 30, 17, 25},
		{"rounds down", 55, 18, 45},
		{"full discount", 100, 100, 0},
		{"negative discount clamped", 100, -5, 100},
		{"over 100 clamped", 100, 150, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FinalPrice(tt.price, tt.discount); got != tt.want {
				t.Errorf("FinalPrice(%d, %d) = %d, want %d", tt.price, tt.discount, got, tt.want)
			}
		})
	}
}

func TestGroup_PopularOrFirst(t *testing.T) {
	t.Run("returns popular item", func(t *testing.T) {
		g := Group{Key: "g", Items: []Item{
			{ID: "a"},
			{ID: "b", Popular: true},
			{ID: "c"},
		}}
		it, ok := g.PopularOrFirst()
		if !ok {
			t.Fatal("expected ok")
		}
		if it.ID != "b" {
			t.Errorf("expected item b, got %s", it.ID)
		}
	})

	t.Run("falls back to first item", func(t *testing.T) {
		g := Group{Key: "g", Items: []Item{{ID: "a"}, {ID: "b"}}}
		it, ok := g.PopularOrFirst()
		if !ok {
			t.Fatal("expected ok")
		}
		if it.ID != "a" {
			t.Errorf("expected item a, got %s", it.ID)
		}
	})

	t.Run("empty group", func(t *testing.T) {
		g := Group{Key: "g"}
		if _, ok := g.PopularOrFirst(); ok {
			t.Error("expected not ok for empty group")
		}
	})
}

func TestCatalog_Lookup(t *testing.T) {
	c := &Catalog{Groups: []Group{
		{Key: "bloodlines", Title: "Bloodlines", Items: []Item{
			{ID: "bl_basic", Name: "Basic", Stock: 30, Price: 25, DiscountPercent: 20},
		}},
	}}

	if _, ok := c.Group("bloodlines"); !ok {
		t.Error("expected to find group")
	}
	if _, ok := c.Group("missing"); ok {
		t.Error("expected missing group to not be found")
	}
	if _, ok := c.Item("bloodlines", "bl_basic"); !ok {
		t.Error("expected to find item")
	}
	if _, ok := c.Item("bloodlines", "bl_full"); ok {
		t.Error("expected missing item to not be found")
	}
}

func TestLoad(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeTempCatalog(t, `{
			"groups": [
				{"key": "gpo", "title": "Grand Piece Online", "items": [
					{"id": "gpo_basic", "name": "Basic", "stock": 18, "price": 30, "discount_percent": 17},
					{"id": "gpo_premium", "name": "Premium", "stock": 10, "price": 55, "discount_percent": 18, "popular": true}
				]}
			]
		}`)

		c, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(c.Groups) != 1 {
			t.Fatalf("expected 1 group, got %d", len(c.Groups))
		}
		it, ok := c.Item("gpo", "gpo_premium")
		if !ok {
			t.Fatal("expected to find gpo_premium")
		}
		if it.FinalPrice() != 45 {
			t.Errorf("expected final price 45, got %d", it.FinalPrice())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("duplicate item id", func(t *testing.T) {
		path := writeTempCatalog(t, `{
			"groups": [
				{"key": "g", "title": "G", "items": [
					{"id": "x", "name": "X", "stock": 1, "price": 10},
					{"id": "x", "name": "X2", "stock": 1, "price": 10}
				]}
			]
		}`)
		if _, err := Load(path); err == nil {
			t.Error("expected error for duplicate item id")
		}
	})

	t.Run("discount out of range", func(t *testing.T) {
		path := writeTempCatalog(t, `{
			"groups": [
				{"key": "g", "title": "G", "items": [
					{"id": "x", "name": "X", "stock": 1, "price": 10, "discount_percent": 120}
				]}
			]
		}`)
		if _, err := Load(path); err == nil {
			t.Error("expected error for discount out of range")
		}
	})
}

func writeTempCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp catalog: %v", err)
	}
	return path
}

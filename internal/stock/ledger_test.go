package stock

import (
	"sync"
	"testing"

	"github.com/storefrontlabs/reserveflow/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{Groups: []catalog.Group{
		{Key: "bloodlines", Title: "Bloodlines", Items: []catalog.Item{
			{ID: "bl_basic", Name: "Basic", Stock: 30, Price: 25},
			{ID: "bl_full", Name: "Full", Stock: 1, Price: 60},
		}},
	}}
}

func TestLedger_ReserveRelease(t *testing.T) {
	l := NewLedger()
	l.InitFromCatalog(testCatalog())

	if got := l.Remaining("bloodlines", "bl_basic"); got != 30 {
		t.Fatalf("expected 30 remaining, got %d", got)
	}

	if !l.Reserve("bloodlines", "bl_basic", 3) {
		t.Fatal("expected reserve to succeed")
	}
	if got := l.Remaining("bloodlines", "bl_basic"); got != 27 {
		t.Fatalf("expected 27 remaining, got %d", got)
	}

	if l.Reserve("bloodlines", "bl_basic", 28) {
		t.Fatal("expected reserve beyond remaining to fail")
	}
	if got := l.Remaining("bloodlines", "bl_basic"); got != 27 {
		t.Fatalf("failed reserve must not mutate, got %d", got)
	}

	l.Release("bloodlines", "bl_basic", 3)
	if got := l.Remaining("bloodlines", "bl_basic"); got != 30 {
		t.Fatalf("expected 30 after release, got %d", got)
	}
}

func TestLedger_InvalidQuantities(t *testing.T) {
	l := NewLedger()
	l.InitFromCatalog(testCatalog())

	if l.Reserve("bloodlines", "bl_basic", 0) {
		t.Error("expected reserve of 0 to fail")
	}
	if l.Reserve("bloodlines", "bl_basic", -2) {
		t.Error("expected negative reserve to fail")
	}

	l.Release("bloodlines", "bl_basic", -2)
	if got := l.Remaining("bloodlines", "bl_basic"); got != 30 {
		t.Errorf("negative release must not mutate, got %d", got)
	}
}

func TestLedger_UnknownItem(t *testing.T) {
	l := NewLedger()
	l.InitFromCatalog(testCatalog())

	if got := l.Remaining("bloodlines", "missing"); got != 0 {
		t.Errorf("expected 0 for unknown item, got %d", got)
	}
	if l.Reserve("bloodlines", "missing", 1) {
		t.Error("expected reserve of unknown item to fail")
	}
}

func TestLedger_ConcurrentLastUnit(t *testing.T) {
	l := NewLedger()
	l.InitFromCatalog(testCatalog())

	const attempts = 50
	var wg sync.WaitGroup
	results := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.Reserve("bloodlines", "bl_full", 1)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}

	if wins != 1 {
		t.Fatalf("expected exactly one winner for the last unit, got %d", wins)
	}
	if got := l.Remaining("bloodlines", "bl_full"); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}
}

func TestLedger_NeverNegative(t *testing.T) {
	l := NewLedger()
	l.InitFromCatalog(testCatalog())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if l.Reserve("bloodlines", "bl_basic", 7) {
					l.Release("bloodlines", "bl_basic", 7)
				}
			}
		}()
	}
	wg.Wait()

	if got := l.Remaining("bloodlines", "bl_basic"); got != 30 {
		t.Fatalf("expected 30 after balanced reserve/release, got %d", got)
	}
}

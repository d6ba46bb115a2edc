package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/storefrontlabs/reserveflow/internal/catalog"
	"github.com/storefrontlabs/reserveflow/internal/reservation"
	"github.com/storefrontlabs/reserveflow/internal/stock"
	"github.com/storefrontlabs/reserveflow/internal/vouch"
)

const testStaffToken = "staff-secret"

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Groups: []catalog.Group{
			{
				Key:   "keys",
				Title: "License Keys",
				Items: []catalog.Item{
					{ID: "basic", Name: "Basic", Stock: 3, Price: 60, DiscountPercent: 20},
					{ID: "pro", Name: "Pro", Stock: 5, Price: 100, Popular: true},
					{ID: "rare", Name: "Rare", Stock: 1, Price: 250},
				},
			},
		},
	}
}

func newTestMux(t *testing.T, cooldown time.Duration) *http.ServeMux {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cat := testCatalog()
	ledger := stock.NewLedger()
	ledger.InitFromCatalog(cat)

	policy := reservation.DefaultPolicy()
	policy.Cooldown = cooldown

	engine, err := reservation.NewEngine(policy, cat, ledger, nil, nil, logger)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go engine.Run(ctx)

	store := vouch.NewStore(filepath.Join(t.TempDir(), "vouches.json"))
	gate := func(scope string) (string, bool) {
		o, err := engine.GetOrder(scope)
		if err != nil {
			return "", false
		}
		return o.Buyer, o.Completed
	}
	flow := vouch.NewFlow(store, gate, logger)

	handler := NewHandler(engine, cat, flow, store, nil, NewCooldown(cooldown), testStaffToken, logger)

	mux := http.NewServeMux()
	handler.Register(mux)
	return mux
}

func doRequest(mux *http.ServeMux, method, path, buyer, body string, staff bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if buyer != "" {
		req.Header.Set(buyerHeader, buyer)
	}
	if staff {
		req.Header.Set(staffHeader, testStaffToken)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Catalog(t *testing.T) {
	mux := newTestMux(t, 0)

	t.Run("full catalog", func(t *testing.T) {
		rec := doRequest(mux, http.MethodGet, "/catalog", "", "", false)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var cat catalog.Catalog
		if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(cat.Groups) != 1 || len(cat.Groups[0].Items) != 3 {
			t.Errorf("unexpected catalog: %+v", cat)
		}
	})

	t.Run("unknown group", func(t *testing.T) {
		rec := doRequest(mux, http.MethodGet, "/catalog/ghosts", "", "", false)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_OpenShopAndSelection(t *testing.T) {
	mux := newTestMux(t, 0)

	rec := doRequest(mux, http.MethodPost, "/shops/alice", "alice", `{"group":"keys"}`, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var sess reservation.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if sess.Item != "pro" || sess.Qty != 1 {
		t.Errorf("unexpected default session: %+v", sess)
	}

	rec = doRequest(mux, http.MethodPatch, "/sessions/alice/selection", "alice", `{"item":"basic","qty":2}`, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	t.Run("identity mismatch", func(t *testing.T) {
		rec := doRequest(mux, http.MethodPost, "/shops/alice", "bob", "", false)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		rec := doRequest(mux, http.MethodPatch, "/sessions/carol/selection", "carol", `{"qty":1}`, false)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_OrderLifecycle(t *testing.T) {
	mux := newTestMux(t, 0)

	rec := doRequest(mux, http.MethodPost, "/orders", "alice", `{"group":"keys","item":"basic","qty":3}`, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var order reservation.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if order.Total != 144 {
		t.Errorf("expected total 144, got %d", order.Total)
	}

	t.Run("duplicate active order", func(t *testing.T) {
		rec := doRequest(mux, http.MethodPost, "/orders", "alice", `{"group":"keys","item":"pro","qty":1}`, false)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		rec := doRequest(mux, http.MethodPost, "/orders/alice/method", "alice", `{"method":"cash"}`, false)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	rec = doRequest(mux, http.MethodPost, "/orders/alice/method", "alice", `{"method":"pix"}`, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	t.Run("locked method", func(t *testing.T) {
		rec := doRequest(mux, http.MethodPost, "/orders/alice/method", "alice", `{"method":"paypal"}`, false)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})

	rec = doRequest(mux, http.MethodGet, "/orders/alice", "alice", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = doRequest(mux, http.MethodPost, "/orders/alice/cancel", "alice", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(mux, http.MethodGet, "/orders/alice", "alice", "", false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after cancel, got %d", rec.Code)
	}
}

func TestHandler_InsufficientStock(t *testing.T) {
	mux := newTestMux(t, 0)

	rec := doRequest(mux, http.MethodPost, "/orders", "alice", `{"group":"keys","item":"rare","qty":1}`, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	rec = doRequest(mux, http.MethodPost, "/orders", "bob", `{"group":"keys","item":"rare","qty":1}`, false)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rec.Code)
	}
}

func TestHandler_ConfirmAndVouch(t *testing.T) {
	mux := newTestMux(t, 0)

	rec := doRequest(mux, http.MethodPost, "/orders", "alice", `{"group":"keys","item":"pro","qty":1}`, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	t.Run("confirm requires staff token", func(t *testing.T) {
		rec := doRequest(mux, http.MethodPost, "/orders/alice/confirm", "alice", `{"tx_ref":"tx-1"}`, false)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	rec = doRequest(mux, http.MethodPost, "/orders/alice/confirm", "", `{"tx_ref":"tx-1"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	t.Run("vouch from another buyer", func(t *testing.T) {
		rec := doRequest(mux, http.MethodPost, "/vouches/alice/stars", "bob", `{"stars":5}`, false)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	rec = doRequest(mux, http.MethodPost, "/vouches/alice/stars", "alice", `{"stars":5}`, false)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(mux, http.MethodPost, "/vouches/alice/comment", "alice", `{"comment":"smooth"}`, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(mux, http.MethodGet, "/vouches?limit=10", "", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var records []vouch.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(records) != 1 || records[0].Comment != "smooth" {
		t.Errorf("unexpected vouches: %v", records)
	}

	t.Run("second vouch rejected", func(t *testing.T) {
		rec := doRequest(mux, http.MethodPost, "/vouches/alice/stars", "alice", `{"stars":4}`, false)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})
}

func TestHandler_Cooldown(t *testing.T) {
	mux := newTestMux(t, time.Second)

	rec := doRequest(mux, http.MethodPost, "/shops/alice", "alice", "", false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	rec = doRequest(mux, http.MethodPost, "/shops/alice", "alice", "", false)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}

	// a different buyer is not affected
	rec = doRequest(mux, http.MethodPost, "/shops/bob", "bob", "", false)
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201 for another buyer, got %d", rec.Code)
	}
}

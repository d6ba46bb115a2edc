package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/storefrontlabs/reserveflow/internal/catalog"
	"github.com/storefrontlabs/reserveflow/internal/platform"
	"github.com/storefrontlabs/reserveflow/internal/reservation"
	"github.com/storefrontlabs/reserveflow/internal/telemetry"
	"github.com/storefrontlabs/reserveflow/internal/vouch"
)

const (
	buyerHeader = "X-Buyer-ID"
	staffHeader = "X-Staff-Token"
)

// Handler exposes the reservation engine over HTTP. Buyers identify with the
// X-Buyer-ID header; staff actions require the configured X-Staff-Token.
type Handler struct {
	engine     *reservation.Engine
	catalog    *catalog.Catalog
	flow       *vouch.Flow
	vouches    *vouch.Store
	platform   *platform.Client
	cooldown   *Cooldown
	staffToken string
	logger     *slog.Logger
}

func NewHandler(engine *reservation.Engine, cat *catalog.Catalog, flow *vouch.Flow, vouches *vouch.Store, platformClient *platform.Client, cooldown *Cooldown, staffToken string, logger *slog.Logger) *Handler {
	return &Handler{
		engine:     engine,
		catalog:    cat,
		flow:       flow,
		vouches:    vouches,
		platform:   platformClient,
		cooldown:   cooldown,
		staffToken: staffToken,
		logger:     logger,
	}
}

// Register wires all routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", telemetry.WithHTTPRoute(h.HandleHealthz))
	mux.HandleFunc("GET /catalog", telemetry.WithHTTPRoute(h.HandleCatalog))
	mux.HandleFunc("GET /catalog/{group}", telemetry.WithHTTPRoute(h.HandleCatalogGroup))
	mux.HandleFunc("POST /shops/{buyer}", telemetry.WithHTTPRoute(h.HandleOpenShop))
	mux.HandleFunc("PATCH /sessions/{buyer}/selection", telemetry.WithHTTPRoute(h.HandleAdjustSelection))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(h.HandleCreateOrder))
	mux.HandleFunc("GET /orders/{scope}", telemetry.WithHTTPRoute(h.HandleGetOrder))
	mux.HandleFunc("POST /orders/{scope}/method", telemetry.WithHTTPRoute(h.HandleSelectMethod))
	mux.HandleFunc("POST /orders/{scope}/cancel", telemetry.WithHTTPRoute(h.HandleCancel))
	mux.HandleFunc("POST /orders/{scope}/confirm", telemetry.WithHTTPRoute(h.HandleConfirm))
	mux.HandleFunc("GET /vouches", telemetry.WithHTTPRoute(h.HandleListVouches))
	mux.HandleFunc("POST /vouches/{scope}/stars", telemetry.WithHTTPRoute(h.HandleRateVouch))
	mux.HandleFunc("POST /vouches/{scope}/comment", telemetry.WithHTTPRoute(h.HandleCommentVouch))
}

func (h *Handler) buyer(r *http.Request) string {
	return r.Header.Get(buyerHeader)
}

func (h *Handler) isStaff(r *http.Request) bool {
	return h.staffToken != "" && r.Header.Get(staffHeader) == h.staffToken
}

func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.catalog)
}

func (h *Handler) HandleCatalogGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := h.catalog.Group(r.PathValue("group"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "group not found")
		return
	}
	h.writeJSON(w, http.StatusOK, group)
}

type openShopRequest struct {
	Group string `json:"group"`
}

func (h *Handler) HandleOpenShop(w http.ResponseWriter, r *http.Request) {
	buyer := r.PathValue("buyer")
	if h.buyer(r) != buyer {
		h.writeError(w, http.StatusForbidden, "buyer identity mismatch")
		return
	}
	if !h.cooldown.Allow(buyer) {
		h.writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	var req openShopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.engine.OpenShop(r.Context(), buyer, req.Group)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	// channel provisioning is best-effort; a failed create never blocks
	// the session
	if h.platform != nil {
		if err := h.platform.CreateChannel(r.Context(), buyer, "shop"); err != nil {
			h.logger.Warn("failed to create channel", "error", err, "buyer", buyer)
		}
	}

	h.logger.Info("shop opened", "buyer", buyer, "group", sess.Group)
	h.writeJSON(w, http.StatusCreated, sess)
}

type selectionRequest struct {
	Group    string `json:"group"`
	Item     string `json:"item"`
	Qty      int    `json:"qty"`
	QtyDelta int    `json:"qty_delta"`
}

func (h *Handler) HandleAdjustSelection(w http.ResponseWriter, r *http.Request) {
	buyer := r.PathValue("buyer")
	if h.buyer(r) != buyer {
		h.writeError(w, http.StatusForbidden, "buyer identity mismatch")
		return
	}
	if !h.cooldown.Allow(buyer) {
		h.writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.engine.AdjustSelection(r.Context(), buyer, reservation.SelectionUpdate{
		Group:    req.Group,
		Item:     req.Item,
		Qty:      req.Qty,
		QtyDelta: req.QtyDelta,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sess)
}

type createOrderRequest struct {
	Group string `json:"group"`
	Item  string `json:"item"`
	Qty   int    `json:"qty"`
}

func (h *Handler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	buyer := h.buyer(r)
	if buyer == "" {
		h.writeError(w, http.StatusBadRequest, "missing buyer identity")
		return
	}
	if !h.cooldown.Allow(buyer) {
		h.writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		order reservation.Order
		err   error
	)
	if req.Group != "" && req.Item != "" {
		order, err = h.engine.CreateOrder(r.Context(), buyer, req.Group, req.Item, req.Qty)
	} else {
		order, err = h.engine.ConfirmSelection(r.Context(), buyer)
	}
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.logger.Info("order created", "order_id", order.ID, "scope", order.Scope)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	if h.buyer(r) != scope && !h.isStaff(r) {
		h.writeError(w, http.StatusForbidden, "buyer identity mismatch")
		return
	}

	order, err := h.engine.GetOrder(scope)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type selectMethodRequest struct {
	Method string `json:"method"`
}

func (h *Handler) HandleSelectMethod(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	if h.buyer(r) != scope {
		h.writeError(w, http.StatusForbidden, "buyer identity mismatch")
		return
	}
	if !h.cooldown.Allow(scope) {
		h.writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	var req selectMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.engine.SelectMethod(r.Context(), scope, req.Method)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	staff := h.isStaff(r)
	actor := h.buyer(r)
	if staff && actor == "" {
		actor = "staff"
	}
	if !staff && !h.cooldown.Allow(actor) {
		h.writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	if err := h.engine.Cancel(r.Context(), scope, actor, staff); err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

type confirmRequest struct {
	TxRef string `json:"tx_ref"`
}

// HandleConfirm is the manual payment-confirmation path; automated
// confirmations arrive over the payment topic instead.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	if !h.isStaff(r) {
		h.writeError(w, http.StatusForbidden, "staff token required")
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.engine.Confirm(r.Context(), r.PathValue("scope"), req.TxRef)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListVouches(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	h.writeJSON(w, http.StatusOK, h.vouches.List(limit))
}

type rateRequest struct {
	Stars int `json:"stars"`
}

func (h *Handler) HandleRateVouch(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	buyer := h.buyer(r)
	if !h.cooldown.Allow(buyer) {
		h.writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.flow.Rate(scope, buyer, req.Stars); err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "awaiting_comment"})
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) HandleCommentVouch(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	buyer := h.buyer(r)

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.flow.Comment(scope, buyer, req.Comment)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reservation.ErrInsufficientStock),
		errors.Is(err, reservation.ErrDuplicateActive),
		errors.Is(err, reservation.ErrMethodLocked),
		errors.Is(err, reservation.ErrOrderActive),
		errors.Is(err, reservation.ErrAlreadyCompleted),
		errors.Is(err, vouch.ErrAlreadyVouched):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, reservation.ErrNoActiveOrder),
		errors.Is(err, reservation.ErrItemNotFound),
		errors.Is(err, reservation.ErrSessionNotFound),
		errors.Is(err, vouch.ErrNoPendingVouch):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reservation.ErrNotOwner),
		errors.Is(err, vouch.ErrNotEligible):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, reservation.ErrUnknownMethod),
		errors.Is(err, vouch.ErrInvalidStars):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

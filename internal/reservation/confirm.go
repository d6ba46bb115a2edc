package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// PaymentConfirmedEvent is the payload consumed from the payment topic.
type PaymentConfirmedEvent struct {
	Scope string `json:"scope"`
	TxRef string `json:"tx_ref"`
}

// PaymentHandler completes orders from payment-confirmed events.
type PaymentHandler struct {
	engine *Engine
	logger *slog.Logger
}

func NewPaymentHandler(engine *Engine, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		engine: engine,
		logger: logger,
	}
}

// Handle is the consumer callback. Events for unknown scopes are logged and
// dropped rather than retried; the payment side owns reconciliation.
func (h *PaymentHandler) Handle(ctx context.Context, payload []byte) error {
	var event PaymentConfirmedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment confirmed event: %w", err)
	}

	h.logger.Info("processing payment confirmed event", "scope", event.Scope, "tx_ref", event.TxRef)

	order, err := h.engine.Confirm(ctx, event.Scope, event.TxRef)
	if err != nil {
		if errors.Is(err, ErrNoActiveOrder) {
			h.logger.Warn("payment confirmed for unknown scope", "scope", event.Scope, "tx_ref", event.TxRef)
			return nil
		}
		return fmt.Errorf("confirm order for scope %s: %w", event.Scope, err)
	}

	h.logger.Info("payment processing complete", "order_id", order.ID, "scope", event.Scope)
	return nil
}

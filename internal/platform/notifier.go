package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/storefrontlabs/reserveflow/internal/reservation"
)

const paidPrefix = "✅paid-"

// Notifier renders reservation state into the buyer's channel. Every call is
// best-effort: failures are logged and never reach the engine.
type Notifier struct {
	client      *Client
	staffViewer string
	logger      *slog.Logger
}

func NewNotifier(client *Client, staffViewer string, logger *slog.Logger) *Notifier {
	return &Notifier{
		client:      client,
		staffViewer: staffViewer,
		logger:      logger,
	}
}

func (n *Notifier) OrderCreated(ctx context.Context, o reservation.Order) (string, error) {
	content := fmt.Sprintf("Reserved %dx %s for %d. Time left: %s. Pick a payment method to lock it in.",
		o.Qty, o.Item, o.Total, reservation.FormatRemaining(o.Remaining(time.Now())))
	return n.client.SendMessage(ctx, o.Scope, content)
}

func (n *Notifier) OrderProgress(ctx context.Context, o reservation.Order, remaining string) {
	if o.MessageID == "" {
		return
	}
	content := fmt.Sprintf("Reserved %dx %s for %d. Time left: %s. Pick a payment method to lock it in.",
		o.Qty, o.Item, o.Total, remaining)
	if err := n.client.EditMessage(ctx, o.Scope, o.MessageID, content); err != nil {
		n.logger.Warn("failed to edit countdown message", "error", err, "scope", o.Scope, "message_id", o.MessageID)
	}
}

func (n *Notifier) OrderReleased(ctx context.Context, o reservation.Order, reason string) {
	var content string
	switch reason {
	case "expired":
		content = fmt.Sprintf("Your reservation for %dx %s expired and the stock was returned.", o.Qty, o.Item)
	default:
		content = fmt.Sprintf("Your reservation for %dx %s was canceled and the stock was returned.", o.Qty, o.Item)
	}
	if _, err := n.client.SendMessage(ctx, o.Scope, content); err != nil {
		n.logger.Warn("failed to send release notice", "error", err, "scope", o.Scope, "reason", reason)
	}
}

// OrderCompleted opens the channel to staff, marks it paid, and invites the
// buyer to leave an anonymous review.
func (n *Notifier) OrderCompleted(ctx context.Context, o reservation.Order) {
	if err := n.client.ShowChannel(ctx, o.Scope, n.staffViewer); err != nil {
		n.logger.Warn("failed to grant staff visibility", "error", err, "scope", o.Scope)
	}
	if err := n.client.RenameChannel(ctx, o.Scope, paidPrefix+o.Scope); err != nil {
		n.logger.Warn("failed to rename channel", "error", err, "scope", o.Scope)
	}

	content := fmt.Sprintf("Payment confirmed for %dx %s. Thanks! Rate your purchase from 1 to 5 stars to leave an anonymous vouch.", o.Qty, o.Item)
	if _, err := n.client.SendMessage(ctx, o.Scope, content); err != nil {
		n.logger.Warn("failed to send completion message", "error", err, "scope", o.Scope)
	}
}

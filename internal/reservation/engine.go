package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/storefrontlabs/reserveflow/internal/catalog"
	"github.com/storefrontlabs/reserveflow/internal/stock"
)

// Publisher emits lifecycle events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Notifier renders order state to the buyer's channel. All methods are
// best-effort; failures never affect order state.
type Notifier interface {
	// OrderCreated posts the order message and returns its id for
	// later countdown edits.
	OrderCreated(ctx context.Context, o Order) (string, error)
	OrderProgress(ctx context.Context, o Order, remaining string)
	OrderReleased(ctx context.Context, o Order, reason string)
	OrderCompleted(ctx context.Context, o Order)
}

const countdownPeriod = time.Second

// Engine owns all order state transitions. A single goroutine started by Run
// consumes the command channel, so no two commands for any scope ever
// interleave; public methods enqueue a closure and wait for it to execute.
// Timer expiry re-enters through the same channel.
type Engine struct {
	policy   Policy
	catalog  *catalog.Catalog
	ledger   *stock.Ledger
	orders   *Store
	sessions *SessionStore
	timers   *TimerController
	producer Publisher
	notifier Notifier
	logger   *slog.Logger

	cmds chan func()

	ordersCreated   metric.Int64Counter
	ordersExpired   metric.Int64Counter
	ordersCanceled  metric.Int64Counter
	ordersCompleted metric.Int64Counter
	ordersActive    metric.Int64UpDownCounter
}

func NewEngine(policy Policy, cat *catalog.Catalog, ledger *stock.Ledger, producer Publisher, notifier Notifier, logger *slog.Logger) (*Engine, error) {
	meter := otel.Meter("reservation/engine")

	created, err := meter.Int64Counter("reservation.orders.created")
	if err != nil {
		return nil, err
	}
	expired, err := meter.Int64Counter("reservation.orders.expired")
	if err != nil {
		return nil, err
	}
	canceled, err := meter.Int64Counter("reservation.orders.canceled")
	if err != nil {
		return nil, err
	}
	completed, err := meter.Int64Counter("reservation.orders.completed")
	if err != nil {
		return nil, err
	}
	active, err := meter.Int64UpDownCounter("reservation.orders.active")
	if err != nil {
		return nil, err
	}

	return &Engine{
		policy:          policy,
		catalog:         cat,
		ledger:          ledger,
		orders:          NewStore(),
		sessions:        NewSessionStore(),
		timers:          NewTimerController(),
		producer:        producer,
		notifier:        notifier,
		logger:          logger,
		cmds:            make(chan func(), 64),
		ordersCreated:   created,
		ordersExpired:   expired,
		ordersCanceled:  canceled,
		ordersCompleted: completed,
		ordersActive:    active,
	}, nil
}

// Run processes commands until ctx is canceled. It must be running for any
// public operation to make progress.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.timers.StopAll()
			return
		case cmd := <-e.cmds:
			cmd()
		}
	}
}

func (e *Engine) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case e.cmds <- func() {
		fn()
		close(done)
	}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue is the non-blocking variant used by timer callbacks and async
// follow-ups that must not wait on the loop.
func (e *Engine) enqueue(fn func()) {
	go func() { e.cmds <- fn }()
}

// OpenShop starts a browsing session for the buyer, defaulting to the
// popular item of the requested group (or the first group when empty).
func (e *Engine) OpenShop(ctx context.Context, buyer, group string) (Session, error) {
	var (
		sess Session
		oerr error
	)
	err := e.do(ctx, func() {
		if o, ok := e.orders.Get(buyer); ok && o.Active() {
			oerr = ErrOrderActive
			return
		}

		if group == "" && len(e.catalog.Groups) > 0 {
			group = e.catalog.Groups[0].Key
		}
		g, ok := e.catalog.Group(group)
		if !ok {
			oerr = ErrItemNotFound
			return
		}
		item, ok := g.PopularOrFirst()
		if !ok {
			oerr = ErrItemNotFound
			return
		}

		sess = Session{
			Buyer: buyer,
			Scope: buyer,
			Group: g.Key,
			Item:  item.ID,
			Qty:   1,
		}
		e.sessions.Put(sess)
	})
	if err != nil {
		return Session{}, err
	}
	if oerr != nil {
		return Session{}, oerr
	}
	e.logger.Info("shop opened", "buyer", buyer, "group", sess.Group)
	return sess, nil
}

// SelectionUpdate changes a browsing session. Empty strings keep the current
// group/item; Qty sets the quantity when positive, otherwise QtyDelta is
// applied to the current one.
type SelectionUpdate struct {
	Group    string
	Item     string
	Qty      int
	QtyDelta int
}

func (e *Engine) AdjustSelection(ctx context.Context, buyer string, upd SelectionUpdate) (Session, error) {
	var (
		sess Session
		oerr error
	)
	err := e.do(ctx, func() {
		if o, ok := e.orders.Get(buyer); ok && o.Active() {
			oerr = ErrOrderActive
			return
		}

		cur, ok := e.sessions.Get(buyer)
		if !ok {
			oerr = ErrSessionNotFound
			return
		}

		if upd.Group != "" {
			cur.Group = upd.Group
		}
		if upd.Item != "" {
			cur.Item = upd.Item
		}
		item, ok := e.catalog.Item(cur.Group, cur.Item)
		if !ok {
			oerr = ErrItemNotFound
			return
		}

		if upd.Qty > 0 {
			cur.Qty = upd.Qty
		} else if upd.QtyDelta != 0 {
			cur.Qty += upd.QtyDelta
		}

		ceiling := e.ledger.Remaining(cur.Group, item.ID)
		if ceiling > e.policy.MaxQuantity {
			ceiling = e.policy.MaxQuantity
		}
		if ceiling < 1 {
			ceiling = 1
		}
		if cur.Qty < 1 {
			cur.Qty = 1
		}
		if cur.Qty > ceiling {
			cur.Qty = ceiling
		}

		e.sessions.Put(cur)
		sess = cur
	})
	if err != nil {
		return Session{}, err
	}
	if oerr != nil {
		return Session{}, oerr
	}
	return sess, nil
}

// Session returns the buyer's current browsing session.
func (e *Engine) Session(buyer string) (Session, error) {
	sess, ok := e.sessions.Get(buyer)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// ConfirmSelection reserves stock for the buyer's current session.
func (e *Engine) ConfirmSelection(ctx context.Context, buyer string) (Order, error) {
	sess, ok := e.sessions.Get(buyer)
	if !ok {
		return Order{}, ErrSessionNotFound
	}
	return e.CreateOrder(ctx, buyer, sess.Group, sess.Item, sess.Qty)
}

// CreateOrder atomically reserves qty units and opens an order for the
// buyer's scope. Price is locked at creation and never recomputed.
func (e *Engine) CreateOrder(ctx context.Context, buyer, group, item string, qty int) (Order, error) {
	var (
		order Order
		oerr  error
	)
	err := e.do(ctx, func() {
		scope := buyer

		if o, ok := e.orders.Get(scope); ok && o.Active() {
			oerr = ErrDuplicateActive
			return
		}

		it, ok := e.catalog.Item(group, item)
		if !ok {
			oerr = ErrItemNotFound
			return
		}
		if qty < 1 {
			qty = 1
		}

		if !e.ledger.Reserve(group, item, qty) {
			oerr = ErrInsufficientStock
			return
		}

		now := time.Now().UTC()
		unit := it.FinalPrice()
		order = Order{
			ID:            uuid.New().String(),
			Scope:         scope,
			Buyer:         buyer,
			Group:         group,
			Item:          item,
			Qty:           qty,
			UnitPrice:     unit,
			Total:         unit * int64(qty),
			Reserved:      true,
			ReservedUntil: now.Add(e.policy.DefaultReserve),
			CreatedAt:     now,
		}
		e.orders.Put(order)
		e.scheduleExpiry(scope, e.policy.DefaultReserve)

		e.ordersCreated.Add(context.Background(), 1)
		e.ordersActive.Add(context.Background(), 1)
	})
	if err != nil {
		return Order{}, err
	}
	if oerr != nil {
		return Order{}, oerr
	}

	e.logger.Info("order created", "order_id", order.ID, "scope", order.Scope, "item", order.Item, "qty", order.Qty, "total", order.Total)
	e.publish(EventCreated, order)
	e.announce(order)
	return order, nil
}

// SelectMethod locks the order to a payment method and applies the fairness
// policy: extending methods get a one-time deadline bump to now+duration when
// less than that remains, all others keep their original deadline.
func (e *Engine) SelectMethod(ctx context.Context, scope, method string) (Order, error) {
	var (
		order    Order
		oerr     error
		extended bool
	)
	err := e.do(ctx, func() {
		o, ok := e.orders.Get(scope)
		if !ok || !o.Reserved {
			oerr = ErrNoActiveOrder
			return
		}
		if o.Completed {
			oerr = ErrAlreadyCompleted
			return
		}

		m, ok := e.policy.Method(method)
		if !ok {
			oerr = ErrUnknownMethod
			return
		}

		if o.Locked {
			if o.Method == method {
				order = o
				return
			}
			oerr = ErrMethodLocked
			return
		}

		o.Method = method
		o.Locked = true

		if m.Extends {
			if remaining := time.Until(o.ReservedUntil); remaining < m.Duration {
				o.ReservedUntil = time.Now().UTC().Add(m.Duration)
				e.scheduleExpiry(scope, m.Duration)
				extended = true
			}
		}

		e.orders.Put(o)
		order = o
	})
	if err != nil {
		return Order{}, err
	}
	if oerr != nil {
		return Order{}, oerr
	}

	e.logger.Info("payment method locked", "order_id", order.ID, "scope", scope, "method", method, "extended", extended)
	e.publish(EventMethodLocked, order)
	return order, nil
}

// Cancel releases the order and returns its stock. Staff may cancel any
// order; buyers only their own.
func (e *Engine) Cancel(ctx context.Context, scope, actor string, staff bool) error {
	var (
		order Order
		oerr  error
	)
	err := e.do(ctx, func() {
		o, ok := e.orders.Get(scope)
		if !ok || !o.Reserved {
			oerr = ErrNoActiveOrder
			return
		}
		if o.Completed {
			oerr = ErrAlreadyCompleted
			return
		}
		if !staff && actor != o.Buyer {
			oerr = ErrNotOwner
			return
		}

		e.release(o)
		order = o
		e.ordersCanceled.Add(context.Background(), 1)
	})
	if err != nil {
		return err
	}
	if oerr != nil {
		return oerr
	}

	e.logger.Info("order canceled", "order_id", order.ID, "scope", scope, "by", actor)
	e.publish(EventReleased, order)
	if e.notifier != nil {
		go e.notifier.OrderReleased(context.Background(), order, "canceled")
	}
	return nil
}

// expire runs on the engine loop when the expiry timer fires. It re-validates
// state because a cancel or confirm may have already resolved the scope.
func (e *Engine) expire(scope string) {
	o, ok := e.orders.Get(scope)
	if !ok || !o.Active() {
		return
	}

	e.release(o)
	e.ordersExpired.Add(context.Background(), 1)

	e.logger.Info("order expired", "order_id", o.ID, "scope", scope)
	e.publish(EventExpired, o)
	if e.notifier != nil {
		go e.notifier.OrderReleased(context.Background(), o, "expired")
	}
}

// release returns stock and removes the order. Callers hold the engine loop;
// this is the only path that credits the ledger, so each order releases
// exactly once.
func (e *Engine) release(o Order) {
	e.ledger.Release(o.Group, o.Item, o.Qty)
	e.timers.StopExpiry(o.Scope)
	e.timers.StopCountdown(o.Scope)
	e.orders.Delete(o.Scope)
	e.ordersActive.Add(context.Background(), -1)
}

// Confirm marks the order paid. A second confirm for the same scope is a
// silent no-op so external signals may be delivered more than once.
func (e *Engine) Confirm(ctx context.Context, scope, txRef string) (Order, error) {
	var (
		order Order
		oerr  error
		again bool
	)
	err := e.do(ctx, func() {
		o, ok := e.orders.Get(scope)
		if !ok || !o.Reserved {
			oerr = ErrNoActiveOrder
			return
		}
		if o.Completed {
			order = o
			again = true
			return
		}

		o.Completed = true
		e.timers.StopExpiry(scope)
		e.timers.StopCountdown(scope)
		e.orders.Put(o)
		order = o

		e.ordersCompleted.Add(context.Background(), 1)
		e.ordersActive.Add(context.Background(), -1)
	})
	if err != nil {
		return Order{}, err
	}
	if oerr != nil {
		return Order{}, oerr
	}
	if again {
		return order, nil
	}

	e.logger.Info("order completed", "order_id", order.ID, "scope", scope, "tx_ref", txRef)
	e.publish(EventCompleted, order)
	if e.notifier != nil {
		go e.notifier.OrderCompleted(context.Background(), order)
	}
	return order, nil
}

// GetOrder returns the order for a scope, including completed ones.
func (e *Engine) GetOrder(scope string) (Order, error) {
	o, ok := e.orders.Get(scope)
	if !ok {
		return Order{}, ErrNoActiveOrder
	}
	return o, nil
}

func (e *Engine) scheduleExpiry(scope string, d time.Duration) {
	e.timers.ScheduleExpiry(scope, d, func() {
		e.enqueue(func() { e.expire(scope) })
	})
}

// announce posts the order message and, once its id is known, records it on
// the order and starts the countdown refresher. Runs off-loop; the id is
// written back through the command channel.
func (e *Engine) announce(o Order) {
	if e.notifier == nil {
		return
	}
	go func() {
		msgID, err := e.notifier.OrderCreated(context.Background(), o)
		if err != nil {
			e.logger.Error("failed to post order message", "error", err, "order_id", o.ID, "scope", o.Scope)
			return
		}
		e.enqueue(func() {
			cur, ok := e.orders.Get(o.Scope)
			if !ok || cur.ID != o.ID {
				return
			}
			cur.MessageID = msgID
			e.orders.Put(cur)
			e.startCountdown(o.Scope)
		})
	}()
}

// startCountdown refreshes the displayed remaining time once per second,
// editing the message only when the rendered string changed.
func (e *Engine) startCountdown(scope string) {
	var last string
	e.timers.StartCountdown(scope, countdownPeriod, func() bool {
		o, ok := e.orders.Get(scope)
		if !ok || o.Completed {
			return false
		}
		remaining := o.Remaining(time.Now())
		if remaining <= 0 {
			return false
		}
		s := FormatRemaining(remaining)
		if s != last {
			last = s
			if e.notifier != nil {
				e.notifier.OrderProgress(context.Background(), o, s)
			}
		}
		return true
	})
}

func (e *Engine) publish(typ EventType, o Order) {
	if e.producer == nil {
		return
	}
	event := NewEvent(typ, o)
	go func() {
		if err := e.producer.Publish(context.Background(), o.Scope, event); err != nil {
			e.logger.Error("failed to publish reservation event", "error", err, "type", string(typ), "order_id", o.ID)
		}
	}()
}

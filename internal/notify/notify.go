// Package notify decouples notification delivery from the business operation
// that triggers it. Dispatch is fire-and-forget: a full queue or a failing
// channel never fails or stalls the ledger/workflow transaction.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// TierUpgrade is emitted exactly once per membership tier change.
type TierUpgrade struct {
	CustomerID  string
	Email       string
	Name        string
	FromTier    string
	ToTier      string
	DiscountPct string
}

// OrderStatusChange is emitted for each order transition when the customer
// has opted in to notifications.
type OrderStatusChange struct {
	CustomerID  string
	Email       string
	OrderNumber string
	FromStatus  string
	ToStatus    string
	Notes       string
}

// Notifier receives notification requests. Implementations must not block the
// caller and must swallow delivery failures.
type Notifier interface {
	TierUpgraded(ctx context.Context, n TierUpgrade)
	OrderStatusChanged(ctx context.Context, n OrderStatusChange)
}

// Nop is a Notifier that discards everything. Useful in tests and CLIs.
type Nop struct{}

func (Nop) TierUpgraded(context.Context, TierUpgrade)             {}
func (Nop) OrderStatusChanged(context.Context, OrderStatusChange) {}

type event struct {
	kind   string
	fields []zap.Field
}

// Dispatcher is an in-process Notifier that queues events on a buffered
// channel and drains them on a single background goroutine. Delivery here is
// a structured log line; a real mail/WhatsApp sender would hang off the same
// drain loop.
type Dispatcher struct {
	lg     *zap.Logger
	events chan event
	done   chan struct{}
}

// NewDispatcher creates a Dispatcher with the given queue size.
func NewDispatcher(lg *zap.Logger, buffer int) *Dispatcher {
	return &Dispatcher{
		lg:     lg,
		events: make(chan event, buffer),
		done:   make(chan struct{}),
	}
}

// Start launches the drain goroutine. It stops when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-d.events:
				d.lg.Info("notification dispatched", append([]zap.Field{zap.String("kind", e.kind)}, e.fields...)...)
			}
		}
	}()
}

// Wait blocks until the drain goroutine has stopped.
func (d *Dispatcher) Wait() {
	<-d.done
}

// enqueue performs a non-blocking send. Dropped events are logged and lost;
// notification delivery is best-effort.
func (d *Dispatcher) enqueue(e event) {
	select {
	case d.events <- e:
	default:
		d.lg.Warn("notification queue full, dropping event", zap.String("kind", e.kind))
	}
}

func (d *Dispatcher) TierUpgraded(_ context.Context, n TierUpgrade) {
	d.enqueue(event{
		kind: "tier_upgrade",
		fields: []zap.Field{
			zap.String("customer_id", n.CustomerID),
			zap.String("email", n.Email),
			zap.String("from_tier", n.FromTier),
			zap.String("to_tier", n.ToTier),
			zap.String("discount_pct", n.DiscountPct),
		},
	})
}

func (d *Dispatcher) OrderStatusChanged(_ context.Context, n OrderStatusChange) {
	d.enqueue(event{
		kind: "order_status",
		fields: []zap.Field{
			zap.String("customer_id", n.CustomerID),
			zap.String("order_number", n.OrderNumber),
			zap.String("from_status", n.FromStatus),
			zap.String("to_status", n.ToStatus),
		},
	})
}

package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/optiontech/servicedesk/internal/domain/catalog"
	"github.com/optiontech/servicedesk/internal/domain/customer"
	"github.com/optiontech/servicedesk/internal/domain/loyalty"
	"github.com/optiontech/servicedesk/internal/domain/pricing"
	"github.com/optiontech/servicedesk/internal/notify"
)

// Sentinel errors for order placement.
var (
	ErrServiceRequired  = errors.New("service required")
	ErrCustomerRequired = errors.New("customer required")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrNegativeCost     = errors.New("costs must not be negative")
)

// PlaceRequest holds the input for placing an order.
type PlaceRequest struct {
	CustomerID  string
	ServiceID   string
	BrandID     string
	DeviceModel string
	Problem     string
	Priority    pricing.Priority
}

// PlaceResult holds a placed order together with the quoted price range.
type PlaceResult struct {
	Order *Order
	Quote pricing.Range
}

// Workflow drives the order lifecycle: placement with a price quote, status
// transitions with audit history, and the completion side effects (warranty,
// points accrual) and delivery side effects (customer order metrics).
type Workflow struct {
	orders    Repository
	customers customer.Repository
	services  catalog.Repository
	ledger    *loyalty.Ledger
	notifier  notify.Notifier

	// earnRate is the monetary amount that earns one point on completion.
	earnRate decimal.Decimal
	now      func() time.Time
}

// NewWorkflow creates a Workflow with the required domain dependencies.
func NewWorkflow(
	orders Repository,
	customers customer.Repository,
	services catalog.Repository,
	ledger *loyalty.Ledger,
	notifier notify.Notifier,
	earnRate decimal.Decimal,
) *Workflow {
	return &Workflow{
		orders:    orders,
		customers: customers,
		services:  services,
		ledger:    ledger,
		notifier:  notifier,
		earnRate:  earnRate,
		now:       time.Now,
	}
}

// Place quotes the service through the pricing engine and creates the order
// in pending with a collision-checked order number. The quoted upper bound is
// stored as the estimated cost; the estimated completion scales down for
// express (x0.7) and emergency (x0.5) jobs.
func (w *Workflow) Place(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	if req.CustomerID == "" {
		return nil, ErrCustomerRequired
	}
	if req.ServiceID == "" {
		return nil, ErrServiceRequired
	}
	if req.Priority == "" {
		req.Priority = pricing.PriorityStandard
	}
	if !req.Priority.Valid() {
		return nil, ErrInvalidPriority
	}

	c, err := w.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "get customer")
	}
	if !c.Active {
		return nil, customer.ErrDeactivated
	}

	svc, err := w.services.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, errors.Wrap(err, "get service")
	}

	var brand *catalog.Brand
	if req.BrandID != "" {
		brand, err = w.services.GetBrand(ctx, req.BrandID)
		if err != nil {
			return nil, errors.Wrap(err, "get brand")
		}
	}

	quote := pricing.Quote(svc, brand, req.Priority, c.Tier.Discount())

	now := w.now()
	eta := now.Add(estimateDuration(svc.EstimatedDuration, req.Priority))
	o := &Order{
		ID:                  uuid.New().String(),
		CustomerID:          c.ID,
		ServiceID:           svc.ID,
		DeviceModel:         req.DeviceModel,
		Problem:             req.Problem,
		Status:              StatusPending,
		Priority:            req.Priority,
		EstimatedCost:       quote.Max,
		FinalCost:           decimal.Zero,
		PartsCost:           decimal.Zero,
		LaborCost:           decimal.Zero,
		DiscountAmount:      decimal.Zero,
		EstimatedCompletion: &eta,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if brand != nil {
		o.BrandID = brand.ID
	}

	for attempt := 0; ; attempt++ {
		o.Number = NewNumber(now)
		err = w.orders.Create(ctx, o)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateNumber) || attempt >= 4 {
			return nil, errors.Wrap(err, "create order")
		}
	}

	return &PlaceResult{Order: o, Quote: quote}, nil
}

// Transition moves the order to a new status, appending exactly one history
// row. Any non-terminal source may move to any known status; terminal sources
// are rejected with ErrOrderClosed. First arrival at completed stamps the
// completion time, the warranty expiry, and the points earned; delivery
// stamps the delivery time and updates the customer's order metrics. Opted-in
// customers get a status notification (fire-and-forget).
func (w *Workflow) Transition(ctx context.Context, number string, to Status, notes, actorID string) (*Order, error) {
	if !to.Valid() {
		return nil, ErrUnknownStatus
	}

	var (
		completed bool
		delivered bool
	)
	o, change, err := w.orders.Transition(ctx, number, func(o *Order) (*StatusChange, error) {
		if o.Status.Terminal() {
			return nil, ErrOrderClosed
		}

		now := w.now()
		from := o.Status
		o.Status = to
		o.UpdatedAt = now

		if to == StatusCompleted && o.CompletedAt == nil {
			completed = true
			o.CompletedAt = &now
			if o.WarrantyExpires == nil {
				if err := w.applyWarranty(ctx, o, now); err != nil {
					return nil, err
				}
			}
			o.PointsEarned = w.pointsFor(o.FinalCost)
		}
		if to == StatusDelivered && o.DeliveredAt == nil {
			delivered = true
			o.DeliveredAt = &now
			if from == StatusReadyPickup && o.PickedUpAt == nil {
				o.PickedUpAt = &now
			}
		}

		return &StatusChange{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			From:      from,
			To:        to,
			Notes:     notes,
			ActorID:   actorID,
			CreatedAt: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if completed && o.PointsEarned > 0 {
		reason := fmt.Sprintf("Service order %s completed", o.Number)
		if _, err := w.ledger.Credit(ctx, o.CustomerID, o.PointsEarned, reason, o.ID); err != nil {
			return nil, errors.Wrap(err, "credit completion points")
		}
	}
	if delivered {
		if err := w.customers.RecordDelivery(ctx, o.CustomerID, o.FinalCost, *o.DeliveredAt); err != nil {
			return nil, errors.Wrap(err, "record delivery")
		}
	}

	w.notifyStatus(ctx, o, change)
	return o, nil
}

// SetCosts records the staff-entered cost breakdown on the order.
func (w *Workflow) SetCosts(ctx context.Context, number string, costs Costs) (*Order, error) {
	for _, v := range []decimal.Decimal{costs.FinalCost, costs.PartsCost, costs.LaborCost, costs.DiscountAmount} {
		if v.IsNegative() {
			return nil, ErrNegativeCost
		}
	}
	if costs.PointsUsed < 0 {
		return nil, ErrNegativeCost
	}
	return w.orders.UpdateCosts(ctx, number, costs)
}

// Get returns the order with the given number.
func (w *Workflow) Get(ctx context.Context, number string) (*Order, error) {
	return w.orders.GetByNumber(ctx, number)
}

// History returns the order's status transitions in call order.
func (w *Workflow) History(ctx context.Context, number string) ([]StatusChange, error) {
	o, err := w.orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return w.orders.History(ctx, o.ID)
}

// applyWarranty sets the warranty expiry from the service's warranty period.
func (w *Workflow) applyWarranty(ctx context.Context, o *Order, now time.Time) error {
	svc, err := w.services.GetService(ctx, o.ServiceID)
	if err != nil {
		return errors.Wrap(err, "get service for warranty")
	}
	expires := now.AddDate(0, 0, svc.WarrantyDays)
	o.WarrantyExpires = &expires
	return nil
}

// pointsFor converts a final cost into earned points at the configured rate,
// rounding down. A zero or unset cost earns nothing.
func (w *Workflow) pointsFor(finalCost decimal.Decimal) int {
	if !finalCost.IsPositive() || !w.earnRate.IsPositive() {
		return 0
	}
	return int(finalCost.Div(w.earnRate).IntPart())
}

// notifyStatus emits a status notification when the customer opted in.
// Failures here never affect the committed transition.
func (w *Workflow) notifyStatus(ctx context.Context, o *Order, change *StatusChange) {
	c, err := w.customers.GetByID(ctx, o.CustomerID)
	if err != nil || (!c.EmailNotifications && !c.WhatsappNotifications) {
		return
	}
	w.notifier.OrderStatusChanged(ctx, notify.OrderStatusChange{
		CustomerID:  c.ID,
		Email:       c.Email,
		OrderNumber: o.Number,
		FromStatus:  string(change.From),
		ToStatus:    string(change.To),
		Notes:       change.Notes,
	})
}

// estimateDuration scales the base duration by priority: express jobs run 30%
// faster, emergency jobs 50% faster.
func estimateDuration(base time.Duration, p pricing.Priority) time.Duration {
	switch p {
	case pricing.PriorityExpress:
		return base * 7 / 10
	case pricing.PriorityEmergency:
		return base / 2
	default:
		return base
	}
}

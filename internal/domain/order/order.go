package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/optiontech/servicedesk/internal/domain/pricing"
)

// Status is the lifecycle state of a service order.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusPending      Status = "pending"
	StatusConfirmed    Status = "confirmed"
	StatusInProgress   Status = "in_progress"
	StatusWaitingParts Status = "waiting_parts"
	StatusTesting      Status = "testing"
	StatusCompleted    Status = "completed"
	StatusReadyPickup  Status = "ready_pickup"
	StatusDelivered    Status = "delivered"
	StatusCancelled    Status = "cancelled"
	StatusRefunded     Status = "refunded"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed, StatusInProgress,
		StatusWaitingParts, StatusTesting, StatusCompleted, StatusReadyPickup,
		StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether s accepts no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Sentinel errors for the order workflow.
var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrOrderClosed is returned when transitioning an order already in a
	// terminal status.
	ErrOrderClosed = errors.New("order is in a terminal status")
	// ErrUnknownStatus is returned for a transition to an unknown status.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrDuplicateNumber is returned by the repository when a generated order
	// number collides; the creation path retries with a fresh number.
	ErrDuplicateNumber = errors.New("duplicate order number")
)

// Order is one repair job. The order number is immutable once assigned;
// status moves freely between non-terminal states but never out of a
// terminal one.
type Order struct {
	ID     string
	Number string

	CustomerID  string
	ServiceID   string
	BrandID     string
	DeviceModel string
	Problem     string

	Status   Status
	Priority pricing.Priority

	EstimatedCost  decimal.Decimal
	FinalCost      decimal.Decimal
	PartsCost      decimal.Decimal
	LaborCost      decimal.Decimal
	DiscountAmount decimal.Decimal

	PointsUsed   int
	PointsEarned int

	EstimatedCompletion *time.Time
	CompletedAt         *time.Time
	PickedUpAt          *time.Time
	DeliveredAt         *time.Time
	WarrantyExpires     *time.Time

	TechnicianID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusChange is one immutable audit row, created exactly once per
// transition. An empty ActorID marks a system-initiated transition.
type StatusChange struct {
	ID        string
	OrderID   string
	From      Status
	To        Status
	Notes     string
	ActorID   string
	CreatedAt time.Time
}

// Costs holds the staff-entered monetary breakdown of an order.
type Costs struct {
	FinalCost      decimal.Decimal
	PartsCost      decimal.Decimal
	LaborCost      decimal.Decimal
	DiscountAmount decimal.Decimal
	PointsUsed     int
	TechnicianID   string
}

// TransitionFunc receives the order snapshot under a row lock and returns the
// status-history row to append, or an error to roll back.
type TransitionFunc func(o *Order) (*StatusChange, error)

// Repository defines persistence operations for orders. Create returns
// ErrDuplicateNumber on a number collision so the caller can regenerate.
// Transition must run fn, the order update, and the history insert in one
// transaction.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByNumber(ctx context.Context, number string) (*Order, error)
	Transition(ctx context.Context, number string, fn TransitionFunc) (*Order, *StatusChange, error)
	History(ctx context.Context, orderID string) ([]StatusChange, error)
	UpdateCosts(ctx context.Context, number string, costs Costs) (*Order, error)
}

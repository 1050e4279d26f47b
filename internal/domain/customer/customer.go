package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrDuplicateReferralCode is returned by the repository when a freshly
	// generated referral code collides with an existing one.
	ErrDuplicateReferralCode = errors.New("duplicate referral code")
	// ErrDeactivated is returned when an operation targets a soft-deactivated
	// customer.
	ErrDeactivated = errors.New("customer is deactivated")
)

// Customer is a loyalty-program participant. The point balance and tier fields
// are owned by the points ledger and must never be mutated directly outside a
// ledger transaction.
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string

	PointBalance   int
	LifetimePoints int
	Tier           Tier
	TierSince      time.Time

	TotalSpent  decimal.Decimal
	TotalOrders int
	LastOrderAt *time.Time

	ReferralCode   string
	ReferredBy     string
	TotalReferrals int

	EmailNotifications    bool
	WhatsappNotifications bool

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines persistence operations for customers. Balance-affecting
// writes go through the loyalty ledger store instead.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id string) (*Customer, error)
	GetByReferralCode(ctx context.Context, code string) (*Customer, error)
	IncrementReferrals(ctx context.Context, id string) error
	// RecordDelivery updates the order metrics (total spent, total orders,
	// last order date) after an order reaches delivered.
	RecordDelivery(ctx context.Context, id string, amount decimal.Decimal, at time.Time) error
	Deactivate(ctx context.Context, id string) error
}

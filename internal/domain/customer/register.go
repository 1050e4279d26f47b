package customer

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	referralCodeLen      = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxReferralAttempts  = 5
)

// NewReferralCode returns a random referral code. Uniqueness is enforced by
// the repository; callers retry on ErrDuplicateReferralCode.
func NewReferralCode() string {
	b := make([]byte, referralCodeLen)
	for i := range b {
		b[i] = referralCodeAlphabet[rand.IntN(len(referralCodeAlphabet))]
	}
	return string(b)
}

// RegisterRequest holds the input for registering a new customer.
type RegisterRequest struct {
	Name  string
	Email string
	Phone string
	// ReferredByCode is an optional referral code of an existing customer.
	ReferredByCode string
}

// Sentinel errors for registration validation.
var (
	ErrNameRequired  = errors.New("name required")
	ErrEmailRequired = errors.New("email required")
)

// Registrar encapsulates customer registration business logic.
type Registrar struct {
	customers Repository
	now       func() time.Time
}

// NewRegistrar creates a Registrar backed by the given repository.
func NewRegistrar(customers Repository) *Registrar {
	return &Registrar{customers: customers, now: time.Now}
}

// Register validates the request, resolves the optional referral linkage, and
// creates the customer with a collision-checked referral code. New customers
// start at Bronze with a zero balance and notifications opted in.
func (r *Registrar) Register(ctx context.Context, req RegisterRequest) (*Customer, error) {
	if req.Name == "" {
		return nil, ErrNameRequired
	}
	if req.Email == "" {
		return nil, ErrEmailRequired
	}

	var referrer *Customer
	if req.ReferredByCode != "" {
		ref, err := r.customers.GetByReferralCode(ctx, req.ReferredByCode)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Unknown referral codes are ignored, not fatal.
				ref = nil
			} else {
				return nil, errors.Wrap(err, "resolve referral code")
			}
		}
		referrer = ref
	}

	now := r.now()
	c := &Customer{
		ID:                    uuid.New().String(),
		Name:                  req.Name,
		Email:                 req.Email,
		Phone:                 req.Phone,
		Tier:                  TierBronze,
		TierSince:             now,
		TotalSpent:            decimal.Zero,
		EmailNotifications:    true,
		WhatsappNotifications: true,
		Active:                true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if referrer != nil {
		c.ReferredBy = referrer.ID
	}

	var err error
	for attempt := 0; attempt < maxReferralAttempts; attempt++ {
		c.ReferralCode = NewReferralCode()
		err = r.customers.Create(ctx, c)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateReferralCode) {
			return nil, errors.Wrap(err, "create customer")
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "generate referral code")
	}

	if referrer != nil {
		if err := r.customers.IncrementReferrals(ctx, referrer.ID); err != nil {
			return nil, errors.Wrap(err, "increment referrals")
		}
	}

	return c, nil
}

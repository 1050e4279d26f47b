package loyalty

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/optiontech/servicedesk/internal/domain/customer"
)

// RewardKind enumerates the supported reward payouts.
type RewardKind string

const (
	// RewardPercentage grants a percentage discount voucher.
	RewardPercentage RewardKind = "percentage"
	// RewardFixed grants a fixed-amount discount voucher.
	RewardFixed RewardKind = "fixed"
	// RewardFreeService grants a free repair service.
	RewardFreeService RewardKind = "free_service"
	// RewardGift grants a physical gift.
	RewardGift RewardKind = "gift"
)

// Eligibility failures, in check order.
var (
	ErrRewardNotFound    = errors.New("reward not found")
	ErrRewardUnavailable = errors.New("reward is not available")
	ErrTierTooLow        = errors.New("membership tier too low for reward")
	ErrRewardWindowOver  = errors.New("reward outside its availability window")
	ErrRewardSoldOut     = errors.New("reward redemption cap reached")
)

// VoucherTTL is the fixed expiry horizon for redemption vouchers.
const VoucherTTL = 30 * 24 * time.Hour

// Reward is a redeemable catalog entry. Only the redemption counter is
// mutated by this package; the catalog itself is managed externally.
type Reward struct {
	ID          string
	Name        string
	Description string
	Kind        RewardKind
	// Value is a percentage for RewardPercentage, a monetary amount for
	// RewardFixed, and unused otherwise.
	Value decimal.Decimal

	PointsRequired int
	MinTier        customer.Tier
	// MinOrderValue constrains the order a discount voucher may be applied
	// to. Zero means unconstrained.
	MinOrderValue decimal.Decimal

	AvailableFrom  *time.Time
	AvailableUntil *time.Time

	// MaxRedemptions caps total redemptions; 0 means uncapped.
	MaxRedemptions int
	Redemptions    int

	Active bool
}

// RedemptionStatus advances only forward: pending/approved -> used, or ->
// expired/cancelled.
type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionApproved  RedemptionStatus = "approved"
	RedemptionUsed      RedemptionStatus = "used"
	RedemptionExpired   RedemptionStatus = "expired"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// Redemption records one reward redemption. PointsUsed snapshots the reward's
// point cost at redemption time; later catalog price changes do not affect it.
type Redemption struct {
	ID          string
	CustomerID  string
	RewardID    string
	PointsUsed  int
	Status      RedemptionStatus
	VoucherCode string
	ExpiresAt   time.Time
	OrderID     string
	CreatedAt   time.Time
}

const (
	voucherCodeLen      = 12
	voucherCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewVoucherCode returns a random voucher code. The alphabet omits easily
// confused characters (0/O, 1/I). Uniqueness is enforced by the store, which
// regenerates on collision.
func NewVoucherCode() string {
	b := make([]byte, voucherCodeLen)
	for i := range b {
		b[i] = voucherCodeAlphabet[rand.IntN(len(voucherCodeAlphabet))]
	}
	return string(b)
}

// RedeemFunc receives the customer and reward snapshots under row locks and
// returns the ledger entry plus the redemption row to create, or an error to
// roll everything back.
type RedeemFunc func(c *customer.Customer, rw *Reward) (*Entry, *Redemption, error)

// RewardStore persists rewards and redemptions. Redeem must run fn, the
// ledger append, the customer update, the redemption insert (with voucher
// collision retry), and the counter increment in one transaction.
type RewardStore interface {
	GetReward(ctx context.Context, id string) (*Reward, error)
	ListRewards(ctx context.Context) ([]Reward, error)
	Redeem(ctx context.Context, customerID, rewardID string, fn RedeemFunc) (*Redemption, error)
}

// CheckEligibility evaluates the redemption rules in fixed order, returning
// the first failure: availability, minimum tier, balance, time window, cap.
func CheckEligibility(c *customer.Customer, rw *Reward, now time.Time) error {
	if !rw.Active {
		return ErrRewardUnavailable
	}
	if !c.Tier.AtLeast(rw.MinTier) {
		return ErrTierTooLow
	}
	if c.PointBalance < rw.PointsRequired {
		return ErrInsufficientBalance
	}
	if rw.AvailableFrom != nil && now.Before(*rw.AvailableFrom) {
		return ErrRewardWindowOver
	}
	if rw.AvailableUntil != nil && now.After(*rw.AvailableUntil) {
		return ErrRewardWindowOver
	}
	if rw.MaxRedemptions > 0 && rw.Redemptions >= rw.MaxRedemptions {
		return ErrRewardSoldOut
	}
	return nil
}

// Redeemer performs reward redemptions against the ledger.
type Redeemer struct {
	store RewardStore
	now   func() time.Time
}

// NewRedeemer creates a Redeemer backed by the given store.
func NewRedeemer(store RewardStore) *Redeemer {
	return &Redeemer{store: store, now: time.Now}
}

// List returns the active reward catalog.
func (r *Redeemer) List(ctx context.Context) ([]Reward, error) {
	return r.store.ListRewards(ctx)
}

// Check evaluates eligibility without side effects, for display purposes.
// The result is advisory: Redeem re-validates under lock.
func (r *Redeemer) Check(ctx context.Context, c *customer.Customer, rewardID string) error {
	rw, err := r.store.GetReward(ctx, rewardID)
	if err != nil {
		return err
	}
	return CheckEligibility(c, rw, r.now())
}

// Redeem re-validates eligibility under row locks (closing the race between
// check and act), debits the point cost, and creates the redemption with a
// fresh voucher code expiring in 30 days. On any failure nothing is committed:
// no ledger entry, no redemption row, no counter increment.
func (r *Redeemer) Redeem(ctx context.Context, customerID, rewardID, orderID string) (*Redemption, error) {
	return r.store.Redeem(ctx, customerID, rewardID, func(c *customer.Customer, rw *Reward) (*Entry, *Redemption, error) {
		now := r.now()
		if err := CheckEligibility(c, rw, now); err != nil {
			return nil, nil, err
		}

		entry, err := debitEntry(c, rw.PointsRequired, KindRedeemed, "Redeemed reward: "+rw.Name, orderID, now)
		if err != nil {
			return nil, nil, err
		}

		red := &Redemption{
			ID:          uuid.New().String(),
			CustomerID:  c.ID,
			RewardID:    rw.ID,
			PointsUsed:  rw.PointsRequired,
			Status:      RedemptionPending,
			VoucherCode: NewVoucherCode(),
			ExpiresAt:   now.Add(VoucherTTL),
			OrderID:     orderID,
			CreatedAt:   now,
		}
		return entry, red, nil
	})
}

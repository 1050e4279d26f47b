// Package loyalty implements the points ledger, the reward catalog with
// redemption, and promotional bonus codes. The ledger is the only writer of a
// customer's point balance: every balance change is an append-only Entry with
// before/after snapshots, committed atomically with the balance update.
package loyalty

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/optiontech/servicedesk/internal/domain/customer"
	"github.com/optiontech/servicedesk/internal/notify"
)

// Kind classifies a ledger entry.
type Kind string

const (
	KindEarned   Kind = "earned"
	KindRedeemed Kind = "redeemed"
	KindExpired  Kind = "expired"
	KindAdjusted Kind = "adjusted"
)

// EarnedTTL is the fixed expiry horizon stamped on earned entries.
const EarnedTTL = 365 * 24 * time.Hour

var (
	// ErrInsufficientBalance is returned when a debit exceeds the customer's
	// current balance. The operation has no partial effect.
	ErrInsufficientBalance = errors.New("insufficient point balance")
	// ErrNonPositivePoints is returned when a credit or debit amount is <= 0.
	ErrNonPositivePoints = errors.New("points must be greater than 0")
)

// Entry is one immutable ledger row. Delta is positive for earns and negative
// for redemptions/expiries. BalanceBefore of entry n equals BalanceAfter of
// the customer's previous entry.
type Entry struct {
	ID            string
	CustomerID    string
	Delta         int
	Kind          Kind
	Reason        string
	OrderID       string
	BalanceBefore int
	BalanceAfter  int
	ExpiresAt     *time.Time
	CreatedAt     time.Time
}

// MutateFunc receives the customer snapshot under a row lock. It applies the
// balance mutation to the snapshot and returns the entry to append, or an
// error to roll the transaction back.
type MutateFunc func(c *customer.Customer) (*Entry, error)

// Store persists ledger entries. Append must run the mutation, the entry
// insert, and the customer update inside one serialized transaction: either
// all are committed or none.
type Store interface {
	Append(ctx context.Context, customerID string, mutate MutateFunc) (*Entry, error)
	// Entries returns the customer's ledger, oldest first.
	Entries(ctx context.Context, customerID string) ([]Entry, error)
	// MaturedEarnings lists earned entries whose expiry timestamp has passed,
	// for the external expiry sweep.
	MaturedEarnings(ctx context.Context, asOf time.Time) ([]Entry, error)
}

// Ledger owns all mutation of customer point balances.
type Ledger struct {
	store    Store
	notifier notify.Notifier
	now      func() time.Time
}

// NewLedger creates a Ledger with the given store and notifier.
func NewLedger(store Store, notifier notify.Notifier) *Ledger {
	return &Ledger{store: store, notifier: notifier, now: time.Now}
}

// Credit appends an earned entry, raising both the current balance and the
// monotonic lifetime total. The entry carries an expiry timestamp of
// now + 365 days. A resulting tier change emits exactly one upgrade
// notification after commit.
func (l *Ledger) Credit(ctx context.Context, customerID string, points int, reason, orderID string) (*Entry, error) {
	if points <= 0 {
		return nil, ErrNonPositivePoints
	}

	var upgrade *notify.TierUpgrade
	entry, err := l.store.Append(ctx, customerID, func(c *customer.Customer) (*Entry, error) {
		now := l.now()
		expires := now.Add(EarnedTTL)

		e := &Entry{
			ID:            uuid.New().String(),
			CustomerID:    c.ID,
			Delta:         points,
			Kind:          KindEarned,
			Reason:        reason,
			OrderID:       orderID,
			BalanceBefore: c.PointBalance,
			BalanceAfter:  c.PointBalance + points,
			ExpiresAt:     &expires,
			CreatedAt:     now,
		}

		c.PointBalance += points
		c.LifetimePoints += points
		upgrade = recalculateTier(c, now)
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	if upgrade != nil {
		l.notifier.TierUpgraded(ctx, *upgrade)
	}
	return entry, nil
}

// Debit appends a redeemed entry. It fails with ErrInsufficientBalance when
// points exceed the current balance; the lifetime total is untouched.
func (l *Ledger) Debit(ctx context.Context, customerID string, points int, reason, orderID string) (*Entry, error) {
	return l.debit(ctx, customerID, points, KindRedeemed, reason, orderID)
}

// Expire appends an expired entry. The external expiry sweep calls this for
// points past their earn horizon; it behaves as an ordinary debit with a
// distinguished kind and no expiry timestamp of its own.
func (l *Ledger) Expire(ctx context.Context, customerID string, points int, reason string) (*Entry, error) {
	return l.debit(ctx, customerID, points, KindExpired, reason, "")
}

// Adjust appends an adjusted entry with a signed delta for staff corrections.
// Positive adjustments do not raise the lifetime total; negative adjustments
// are balance-checked like any debit.
func (l *Ledger) Adjust(ctx context.Context, customerID string, delta int, reason string) (*Entry, error) {
	if delta == 0 {
		return nil, ErrNonPositivePoints
	}
	if delta < 0 {
		return l.debit(ctx, customerID, -delta, KindAdjusted, reason, "")
	}

	entry, err := l.store.Append(ctx, customerID, func(c *customer.Customer) (*Entry, error) {
		now := l.now()
		e := &Entry{
			ID:            uuid.New().String(),
			CustomerID:    c.ID,
			Delta:         delta,
			Kind:          KindAdjusted,
			Reason:        reason,
			BalanceBefore: c.PointBalance,
			BalanceAfter:  c.PointBalance + delta,
			CreatedAt:     now,
		}
		c.PointBalance += delta
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Entries returns the customer's ledger, oldest first.
func (l *Ledger) Entries(ctx context.Context, customerID string) ([]Entry, error) {
	return l.store.Entries(ctx, customerID)
}

// MaturedEarnings lists earned entries past their expiry, for the sweep.
func (l *Ledger) MaturedEarnings(ctx context.Context) ([]Entry, error) {
	return l.store.MaturedEarnings(ctx, l.now())
}

func (l *Ledger) debit(ctx context.Context, customerID string, points int, kind Kind, reason, orderID string) (*Entry, error) {
	if points <= 0 {
		return nil, ErrNonPositivePoints
	}

	entry, err := l.store.Append(ctx, customerID, func(c *customer.Customer) (*Entry, error) {
		return debitEntry(c, points, kind, reason, orderID, l.now())
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// debitEntry applies a balance-checked debit to the locked customer snapshot
// and builds the ledger entry. Shared with the reward redemption path, which
// runs the same mutation inside its own transaction.
func debitEntry(c *customer.Customer, points int, kind Kind, reason, orderID string, now time.Time) (*Entry, error) {
	if points > c.PointBalance {
		return nil, ErrInsufficientBalance
	}

	e := &Entry{
		ID:            uuid.New().String(),
		CustomerID:    c.ID,
		Delta:         -points,
		Kind:          kind,
		Reason:        reason,
		OrderID:       orderID,
		BalanceBefore: c.PointBalance,
		BalanceAfter:  c.PointBalance - points,
		CreatedAt:     now,
	}
	c.PointBalance -= points
	return e, nil
}

// recalculateTier re-runs the tier policy against the lifetime total and
// applies a change to the snapshot. It returns a notification payload when the
// tier actually changed, nil on no-op; the caller emits it once after commit.
func recalculateTier(c *customer.Customer, now time.Time) *notify.TierUpgrade {
	next := customer.TierFor(c.LifetimePoints)
	if next == c.Tier {
		return nil
	}

	from := c.Tier
	c.Tier = next
	c.TierSince = now
	return &notify.TierUpgrade{
		CustomerID:  c.ID,
		Email:       c.Email,
		Name:        c.Name,
		FromTier:    string(from),
		ToTier:      string(next),
		DiscountPct: next.Discount().String(),
	}
}

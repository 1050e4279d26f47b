package loyalty

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/optiontech/servicedesk/internal/domain/customer"
	"github.com/optiontech/servicedesk/internal/notify"
)

// Promo failures.
var (
	ErrPromoInvalid = errors.New("invalid promo code")
	ErrPromoUsed    = errors.New("promo code already claimed")
)

// Promo is a single-use bonus-point code from a marketing campaign export.
// Codes are bulk-ingested offline (see cmd/promo-ingest) and claimed once.
type Promo struct {
	Code        string
	Points      int
	Description string
	Active      bool
	ClaimedBy   string
	ClaimedAt   *time.Time
}

// PromoFunc receives the promo and customer snapshots under row locks and
// returns the credit entry to append, or an error to roll back.
type PromoFunc func(p *Promo, c *customer.Customer) (*Entry, error)

// PromoStore persists promo codes. Claim must mark the code claimed, append
// the ledger entry, and update the customer in one transaction.
type PromoStore interface {
	Claim(ctx context.Context, code, customerID string, fn PromoFunc) (*Entry, error)
}

// PromoClaimer credits promo bonus points through the ledger.
type PromoClaimer struct {
	store    PromoStore
	notifier notify.Notifier
	now      func() time.Time
}

// NewPromoClaimer creates a PromoClaimer backed by the given store.
func NewPromoClaimer(store PromoStore, notifier notify.Notifier) *PromoClaimer {
	return &PromoClaimer{store: store, notifier: notifier, now: time.Now}
}

// Claim atomically marks the code claimed and credits its bonus points. The
// credit behaves like any earn: it raises the lifetime total, carries the
// 365-day expiry, and may trigger a tier upgrade.
func (pc *PromoClaimer) Claim(ctx context.Context, customerID, code string) (*Entry, error) {
	var upgrade *notify.TierUpgrade
	entry, err := pc.store.Claim(ctx, code, customerID, func(p *Promo, c *customer.Customer) (*Entry, error) {
		if !p.Active {
			return nil, ErrPromoInvalid
		}
		if p.ClaimedBy != "" {
			return nil, ErrPromoUsed
		}

		now := pc.now()
		expires := now.Add(EarnedTTL)
		e := &Entry{
			ID:            uuid.New().String(),
			CustomerID:    c.ID,
			Delta:         p.Points,
			Kind:          KindEarned,
			Reason:        "Promo code " + p.Code,
			BalanceBefore: c.PointBalance,
			BalanceAfter:  c.PointBalance + p.Points,
			ExpiresAt:     &expires,
			CreatedAt:     now,
		}

		c.PointBalance += p.Points
		c.LifetimePoints += p.Points
		upgrade = recalculateTier(c, now)

		p.ClaimedBy = c.ID
		p.ClaimedAt = &now
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	if upgrade != nil {
		pc.notifier.TierUpgraded(ctx, *upgrade)
	}
	return entry, nil
}

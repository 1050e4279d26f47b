package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiontech/servicedesk/internal/domain/loyalty"
)

const (
	lockPromoSQL = `SELECT code, points, description, active, claimed_by, claimed_at
		FROM promo_codes WHERE UPPER(code) = UPPER($1) FOR UPDATE`

	markPromoClaimedSQL = `UPDATE promo_codes SET claimed_by = $2, claimed_at = $3 WHERE code = $1`

	upsertPromoSQL = `INSERT INTO promo_codes (code, points, description, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (code) DO UPDATE SET points = EXCLUDED.points,
			description = EXCLUDED.description, active = TRUE`
)

var _ loyalty.PromoStore = (*PromoRepository)(nil)

// PromoRepository implements loyalty.PromoStore backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// Claim runs fn with the promo and customer rows locked, then commits the
// claim mark, the ledger entry, and the customer update as one unit.
func (r *PromoRepository) Claim(ctx context.Context, code, customerID string, fn loyalty.PromoFunc) (*loyalty.Entry, error) {
	var entry *loyalty.Entry
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			p         loyalty.Promo
			claimedBy *string
		)
		err := tx.QueryRow(ctx, lockPromoSQL, code).Scan(
			&p.Code, &p.Points, &p.Description, &p.Active, &claimedBy, &p.ClaimedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return loyalty.ErrPromoInvalid
			}
			return fmt.Errorf("locking promo %q: %w", code, err)
		}
		if claimedBy != nil {
			p.ClaimedBy = *claimedBy
		}

		c, err := lockCustomer(ctx, tx, customerID)
		if err != nil {
			return err
		}

		entry, err = fn(&p, c)
		if err != nil {
			return err
		}

		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}
		if err := persistLoyaltyState(ctx, tx, c); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, markPromoClaimedSQL, p.Code, p.ClaimedBy, p.ClaimedAt); err != nil {
			return fmt.Errorf("marking promo %q claimed: %w", p.Code, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// UpsertPromo inserts or refreshes a promo code. Used by the bulk ingest CLI.
func (r *PromoRepository) UpsertPromo(ctx context.Context, p loyalty.Promo) error {
	_, err := r.pool.Exec(ctx, upsertPromoSQL, p.Code, p.Points, p.Description)
	if err != nil {
		return fmt.Errorf("upserting promo %q: %w", p.Code, err)
	}
	return nil
}

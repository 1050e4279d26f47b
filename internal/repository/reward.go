package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiontech/servicedesk/internal/domain/customer"
	"github.com/optiontech/servicedesk/internal/domain/loyalty"
)

const rewardColumns = `id, name, description, kind, value, points_required,
	min_tier, min_order_value, available_from, available_until,
	max_redemptions, redemptions, active`

const (
	getRewardSQL  = `SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1`
	lockRewardSQL = `SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1 FOR UPDATE`

	listRewardsSQL = `SELECT ` + rewardColumns + ` FROM rewards WHERE active = TRUE ORDER BY points_required`

	insertRedemptionSQL = `INSERT INTO reward_redemptions (id, customer_id, reward_id,
		points_used, status, voucher_code, expires_at, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)`

	incrementRedemptionsSQL = `UPDATE rewards SET redemptions = redemptions + 1 WHERE id = $1`
)

// maxVoucherAttempts bounds voucher-code regeneration on collisions.
const maxVoucherAttempts = 5

var _ loyalty.RewardStore = (*RewardRepository)(nil)

// RewardRepository implements loyalty.RewardStore backed by PostgreSQL.
type RewardRepository struct {
	pool *pgxpool.Pool
}

// NewRewardRepository returns a RewardRepository that uses the given pool.
func NewRewardRepository(pool *pgxpool.Pool) *RewardRepository {
	return &RewardRepository{pool: pool}
}

// GetReward looks up a reward by ID.
func (r *RewardRepository) GetReward(ctx context.Context, id string) (*loyalty.Reward, error) {
	rows, err := r.pool.Query(ctx, getRewardSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding reward %q: %w", id, err)
	}

	rw, err := pgx.CollectExactlyOneRow(rows, scanReward)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loyalty.ErrRewardNotFound
		}
		return nil, fmt.Errorf("finding reward %q: %w", id, err)
	}
	return &rw, nil
}

// ListRewards returns the active reward catalog, cheapest first.
func (r *RewardRepository) ListRewards(ctx context.Context) ([]loyalty.Reward, error) {
	rows, err := r.pool.Query(ctx, listRewardsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing rewards: %w", err)
	}
	return pgx.CollectRows(rows, scanReward)
}

// Redeem runs fn with both the customer and the reward rows locked, then
// commits the ledger entry, customer update, redemption insert, and counter
// increment as one unit. Voucher-code collisions are retried under a
// savepoint with a regenerated code.
func (r *RewardRepository) Redeem(ctx context.Context, customerID, rewardID string, fn loyalty.RedeemFunc) (*loyalty.Redemption, error) {
	var red *loyalty.Redemption
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := lockCustomer(ctx, tx, customerID)
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx, lockRewardSQL, rewardID)
		if err != nil {
			return fmt.Errorf("locking reward %q: %w", rewardID, err)
		}
		rw, err := pgx.CollectExactlyOneRow(rows, scanReward)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return loyalty.ErrRewardNotFound
			}
			return fmt.Errorf("locking reward %q: %w", rewardID, err)
		}

		entry, redemption, err := fn(c, &rw)
		if err != nil {
			return err
		}

		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}
		if err := persistLoyaltyState(ctx, tx, c); err != nil {
			return err
		}
		if err := insertRedemption(ctx, tx, redemption); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, incrementRedemptionsSQL, rw.ID); err != nil {
			return fmt.Errorf("incrementing redemptions for %q: %w", rw.ID, err)
		}

		red = redemption
		return nil
	})
	if err != nil {
		return nil, err
	}
	return red, nil
}

// insertRedemption inserts the redemption row, regenerating the voucher code
// on unique-constraint collisions. Each attempt runs under a savepoint so a
// failed insert does not poison the enclosing transaction.
func insertRedemption(ctx context.Context, tx pgx.Tx, red *loyalty.Redemption) error {
	for attempt := 0; attempt < maxVoucherAttempts; attempt++ {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return errors.Wrap(err, "begin savepoint")
		}

		_, err = sp.Exec(ctx, insertRedemptionSQL,
			red.ID, red.CustomerID, red.RewardID, red.PointsUsed,
			string(red.Status), red.VoucherCode, red.ExpiresAt, red.OrderID, red.CreatedAt,
		)
		if err == nil {
			return sp.Commit(ctx)
		}

		_ = sp.Rollback(ctx)
		if !isUniqueViolation(err) {
			return fmt.Errorf("inserting redemption %q: %w", red.ID, err)
		}
		red.VoucherCode = loyalty.NewVoucherCode()
	}
	return errors.New("voucher code collisions exhausted retries")
}

func scanReward(row pgx.CollectableRow) (loyalty.Reward, error) {
	var (
		rw      loyalty.Reward
		kind    string
		minTier string
	)
	err := row.Scan(
		&rw.ID, &rw.Name, &rw.Description, &kind, &rw.Value, &rw.PointsRequired,
		&minTier, &rw.MinOrderValue, &rw.AvailableFrom, &rw.AvailableUntil,
		&rw.MaxRedemptions, &rw.Redemptions, &rw.Active,
	)
	rw.Kind = loyalty.RewardKind(kind)
	rw.MinTier = customer.Tier(minTier)
	return rw, err
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiontech/servicedesk/internal/domain/loyalty"
)

const (
	insertEntrySQL = `INSERT INTO point_transactions (id, customer_id, delta, kind,
		reason, order_id, balance_before, balance_after, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)`

	listEntriesSQL = `SELECT id, customer_id, delta, kind, reason, order_id,
		balance_before, balance_after, expires_at, created_at
		FROM point_transactions WHERE customer_id = $1 ORDER BY created_at, id`

	maturedEarningsSQL = `SELECT id, customer_id, delta, kind, reason, order_id,
		balance_before, balance_after, expires_at, created_at
		FROM point_transactions
		WHERE kind = 'earned' AND expires_at <= $1 ORDER BY expires_at`
)

var _ loyalty.Store = (*LedgerRepository)(nil)

// LedgerRepository implements loyalty.Store backed by PostgreSQL.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository returns a LedgerRepository that uses the given pool.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Append runs the mutation with the customer row locked, then commits the
// ledger insert and the customer update as one unit. A mutation error rolls
// the whole transaction back with no partial effect.
func (r *LedgerRepository) Append(ctx context.Context, customerID string, mutate loyalty.MutateFunc) (*loyalty.Entry, error) {
	var entry *loyalty.Entry
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := lockCustomer(ctx, tx, customerID)
		if err != nil {
			return err
		}

		entry, err = mutate(c)
		if err != nil {
			return err
		}

		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}
		return persistLoyaltyState(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Entries returns the customer's ledger, oldest first.
func (r *LedgerRepository) Entries(ctx context.Context, customerID string) ([]loyalty.Entry, error) {
	rows, err := r.pool.Query(ctx, listEntriesSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing entries for %q: %w", customerID, err)
	}
	return pgx.CollectRows(rows, scanEntry)
}

// MaturedEarnings lists earned entries whose expiry has passed, for the
// external expiry sweep.
func (r *LedgerRepository) MaturedEarnings(ctx context.Context, asOf time.Time) ([]loyalty.Entry, error) {
	rows, err := r.pool.Query(ctx, maturedEarningsSQL, asOf)
	if err != nil {
		return nil, fmt.Errorf("listing matured earnings: %w", err)
	}
	return pgx.CollectRows(rows, scanEntry)
}

func insertEntry(ctx context.Context, tx pgx.Tx, e *loyalty.Entry) error {
	_, err := tx.Exec(ctx, insertEntrySQL,
		e.ID, e.CustomerID, e.Delta, string(e.Kind), e.Reason, e.OrderID,
		e.BalanceBefore, e.BalanceAfter, e.ExpiresAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting ledger entry %q: %w", e.ID, err)
	}
	return nil
}

func scanEntry(row pgx.CollectableRow) (loyalty.Entry, error) {
	var (
		e       loyalty.Entry
		kind    string
		orderID *string
	)
	err := row.Scan(
		&e.ID, &e.CustomerID, &e.Delta, &kind, &e.Reason, &orderID,
		&e.BalanceBefore, &e.BalanceAfter, &e.ExpiresAt, &e.CreatedAt,
	)
	e.Kind = loyalty.Kind(kind)
	if orderID != nil {
		e.OrderID = *orderID
	}
	return e, err
}

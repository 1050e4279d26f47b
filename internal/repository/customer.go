package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/optiontech/servicedesk/internal/domain/customer"
)

const customerColumns = `id, name, email, phone, point_balance, lifetime_points,
	tier, tier_since, total_spent, total_orders, last_order_at,
	referral_code, referred_by, total_referrals,
	email_notifications, whatsapp_notifications, active, created_at, updated_at`

const (
	createCustomerSQL = `INSERT INTO customers (id, name, email, phone,
		point_balance, lifetime_points, tier, tier_since, total_spent,
		referral_code, referred_by, email_notifications, whatsapp_notifications,
		active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14, $15, $16)`

	incrementReferralsSQL = `UPDATE customers
		SET total_referrals = total_referrals + 1, updated_at = now()
		WHERE id = $1`

	recordDeliverySQL = `UPDATE customers
		SET total_spent = total_spent + $2, total_orders = total_orders + 1,
			last_order_at = $3, updated_at = now()
		WHERE id = $1`

	deactivateCustomerSQL = `UPDATE customers SET active = FALSE, updated_at = now() WHERE id = $1`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Create persists a new customer. A referral-code collision surfaces as
// customer.ErrDuplicateReferralCode so the registrar can retry with a fresh
// code.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	_, err := r.pool.Exec(ctx, createCustomerSQL,
		c.ID, c.Name, c.Email, c.Phone,
		c.PointBalance, c.LifetimePoints, string(c.Tier), c.TierSince, c.TotalSpent,
		c.ReferralCode, c.ReferredBy, c.EmailNotifications, c.WhatsappNotifications,
		c.Active, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return customer.ErrDuplicateReferralCode
		}
		return fmt.Errorf("creating customer %q: %w", c.ID, err)
	}
	return nil
}

// GetByID looks up a customer by ID.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	return r.getBy(ctx, "id", id)
}

// GetByReferralCode looks up a customer by their referral code.
func (r *CustomerRepository) GetByReferralCode(ctx context.Context, code string) (*customer.Customer, error) {
	return r.getBy(ctx, "referral_code", code)
}

func (r *CustomerRepository) getBy(ctx context.Context, column, value string) (*customer.Customer, error) {
	sql := fmt.Sprintf(`SELECT %s FROM customers WHERE %s = $1`, customerColumns, column)
	rows, err := r.pool.Query(ctx, sql, value)
	if err != nil {
		return nil, fmt.Errorf("finding customer by %s: %w", column, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("finding customer by %s: %w", column, err)
	}
	return &c, nil
}

// IncrementReferrals bumps the referrer's referral counter.
func (r *CustomerRepository) IncrementReferrals(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, incrementReferralsSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing referrals for %q: %w", id, err)
	}
	return nil
}

// RecordDelivery updates the customer's order metrics after a delivery.
func (r *CustomerRepository) RecordDelivery(ctx context.Context, id string, amount decimal.Decimal, at time.Time) error {
	_, err := r.pool.Exec(ctx, recordDeliverySQL, id, amount, at)
	if err != nil {
		return fmt.Errorf("recording delivery for %q: %w", id, err)
	}
	return nil
}

// Deactivate soft-deactivates the customer. Rows are never hard-deleted.
func (r *CustomerRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, deactivateCustomerSQL, id)
	if err != nil {
		return fmt.Errorf("deactivating customer %q: %w", id, err)
	}
	return nil
}

// lockCustomer loads a customer inside tx with its row locked FOR UPDATE,
// serializing concurrent balance mutations.
func lockCustomer(ctx context.Context, tx pgx.Tx, id string) (*customer.Customer, error) {
	sql := fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1 FOR UPDATE`, customerColumns)
	rows, err := tx.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("locking customer %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("locking customer %q: %w", id, err)
	}
	return &c, nil
}

const updateLoyaltyStateSQL = `UPDATE customers
	SET point_balance = $2, lifetime_points = $3, tier = $4, tier_since = $5, updated_at = now()
	WHERE id = $1`

// persistLoyaltyState writes back the ledger-owned customer fields inside tx.
func persistLoyaltyState(ctx context.Context, tx pgx.Tx, c *customer.Customer) error {
	_, err := tx.Exec(ctx, updateLoyaltyStateSQL,
		c.ID, c.PointBalance, c.LifetimePoints, string(c.Tier), c.TierSince,
	)
	if err != nil {
		return fmt.Errorf("updating loyalty state for %q: %w", c.ID, err)
	}
	return nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var (
		c          customer.Customer
		tier       string
		referredBy *string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.PointBalance, &c.LifetimePoints,
		&tier, &c.TierSince, &c.TotalSpent, &c.TotalOrders, &c.LastOrderAt,
		&c.ReferralCode, &referredBy, &c.TotalReferrals,
		&c.EmailNotifications, &c.WhatsappNotifications, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Tier = customer.Tier(tier)
	if referredBy != nil {
		c.ReferredBy = *referredBy
	}
	return c, err
}

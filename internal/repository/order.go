package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiontech/servicedesk/internal/domain/order"
	"github.com/optiontech/servicedesk/internal/domain/pricing"
)

const orderColumns = `id, number, customer_id, service_id, brand_id, device_model,
	problem, status, priority, estimated_cost, final_cost, parts_cost, labor_cost,
	discount_amount, points_used, points_earned, estimated_completion, completed_at,
	picked_up_at, delivered_at, warranty_expires, technician_id, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (id, number, customer_id, service_id, brand_id,
		device_model, problem, status, priority, estimated_cost, final_cost, parts_cost,
		labor_cost, discount_amount, points_used, points_earned, estimated_completion,
		technician_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20)`

	getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE number = $1`

	lockOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE number = $1 FOR UPDATE`

	updateOrderStateSQL = `UPDATE orders SET status = $2, points_earned = $3,
		completed_at = $4, picked_up_at = $5, delivered_at = $6, warranty_expires = $7,
		updated_at = $8
		WHERE id = $1`

	insertStatusChangeSQL = `INSERT INTO order_status_history
		(id, order_id, from_status, to_status, notes, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`

	listHistorySQL = `SELECT id, order_id, from_status, to_status, notes, actor_id, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at, id`

	updateCostsSQL = `UPDATE orders SET final_cost = $2, parts_cost = $3, labor_cost = $4,
		discount_amount = $5, points_used = $6, technician_id = $7, updated_at = now()
		WHERE number = $1
		RETURNING ` + orderColumns
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. A colliding order number surfaces as
// order.ErrDuplicateNumber so the workflow can retry with a fresh number.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.Number, o.CustomerID, o.ServiceID, o.BrandID,
		o.DeviceModel, o.Problem, string(o.Status), string(o.Priority),
		o.EstimatedCost, o.FinalCost, o.PartsCost, o.LaborCost, o.DiscountAmount,
		o.PointsUsed, o.PointsEarned, o.EstimatedCompletion,
		o.TechnicianID, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrDuplicateNumber
		}
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return nil
}

// GetByNumber looks up an order by its human-readable number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByNumberSQL, number)
	if err != nil {
		return nil, fmt.Errorf("finding order %q: %w", number, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order %q: %w", number, err)
	}
	return &o, nil
}

// Transition runs fn with the order row locked, then commits the order update
// and the history insert as one unit. Exactly one history row is written per
// successful call.
func (r *OrderRepository) Transition(ctx context.Context, number string, fn order.TransitionFunc) (*order.Order, *order.StatusChange, error) {
	var (
		o      order.Order
		change *order.StatusChange
	)
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockOrderByNumberSQL, number)
		if err != nil {
			return fmt.Errorf("locking order %q: %w", number, err)
		}
		o, err = pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", number, err)
		}

		change, err = fn(&o)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, updateOrderStateSQL,
			o.ID, string(o.Status), o.PointsEarned,
			o.CompletedAt, o.PickedUpAt, o.DeliveredAt, o.WarrantyExpires, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("updating order %q: %w", o.Number, err)
		}

		_, err = tx.Exec(ctx, insertStatusChangeSQL,
			change.ID, change.OrderID, string(change.From), string(change.To),
			change.Notes, change.ActorID, change.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting status history for %q: %w", o.Number, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &o, change, nil
}

// History returns the order's status transitions in creation order.
func (r *OrderRepository) History(ctx context.Context, orderID string) ([]order.StatusChange, error) {
	rows, err := r.pool.Query(ctx, listHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing history for %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanStatusChange)
}

// UpdateCosts writes the staff-entered cost breakdown and returns the updated
// order.
func (r *OrderRepository) UpdateCosts(ctx context.Context, number string, costs order.Costs) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateCostsSQL, number,
		costs.FinalCost, costs.PartsCost, costs.LaborCost, costs.DiscountAmount,
		costs.PointsUsed, costs.TechnicianID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating costs for %q: %w", number, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating costs for %q: %w", number, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		brandID  *string
		status   string
		priority string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.ServiceID, &brandID, &o.DeviceModel,
		&o.Problem, &status, &priority, &o.EstimatedCost, &o.FinalCost, &o.PartsCost,
		&o.LaborCost, &o.DiscountAmount, &o.PointsUsed, &o.PointsEarned,
		&o.EstimatedCompletion, &o.CompletedAt, &o.PickedUpAt, &o.DeliveredAt,
		&o.WarrantyExpires, &o.TechnicianID, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.Priority = pricing.Priority(priority)
	if brandID != nil {
		o.BrandID = *brandID
	}
	return o, err
}

func scanStatusChange(row pgx.CollectableRow) (order.StatusChange, error) {
	var (
		sc      order.StatusChange
		from    string
		to      string
		actorID *string
	)
	err := row.Scan(&sc.ID, &sc.OrderID, &from, &to, &sc.Notes, &actorID, &sc.CreatedAt)
	sc.From = order.Status(from)
	sc.To = order.Status(to)
	if actorID != nil {
		sc.ActorID = *actorID
	}
	return sc, err
}

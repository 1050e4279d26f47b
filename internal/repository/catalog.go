package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optiontech/servicedesk/internal/domain/catalog"
)

const serviceColumns = `id, name, slug, category, short_description,
	base_price_min, base_price_max, difficulty, estimated_duration, warranty_days, active`

const (
	listServicesSQL = `SELECT ` + serviceColumns + ` FROM services WHERE active = TRUE ORDER BY name`
	getServiceSQL   = `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

	getBrandSQL = `SELECT id, name, service_difficulty FROM brands WHERE id = $1`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListServices returns the active service catalog in name order.
func (r *CatalogRepository) ListServices(ctx context.Context) ([]catalog.Service, error) {
	rows, err := r.pool.Query(ctx, listServicesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	return pgx.CollectRows(rows, scanService)
}

// GetService looks up a service by ID.
func (r *CatalogRepository) GetService(ctx context.Context, id string) (*catalog.Service, error) {
	rows, err := r.pool.Query(ctx, getServiceSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding service %q: %w", id, err)
	}

	svc, err := pgx.CollectExactlyOneRow(rows, scanService)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrServiceNotFound
		}
		return nil, fmt.Errorf("finding service %q: %w", id, err)
	}
	return &svc, nil
}

// GetBrand looks up a brand by ID.
func (r *CatalogRepository) GetBrand(ctx context.Context, id string) (*catalog.Brand, error) {
	var (
		b          catalog.Brand
		difficulty string
	)
	err := r.pool.QueryRow(ctx, getBrandSQL, id).Scan(&b.ID, &b.Name, &difficulty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrBrandNotFound
		}
		return nil, fmt.Errorf("finding brand %q: %w", id, err)
	}
	b.ServiceDifficulty = catalog.Difficulty(difficulty)
	return &b, nil
}

func scanService(row pgx.CollectableRow) (catalog.Service, error) {
	var (
		svc        catalog.Service
		difficulty string
		duration   int64
	)
	err := row.Scan(
		&svc.ID, &svc.Name, &svc.Slug, &svc.Category, &svc.ShortDescription,
		&svc.BasePriceMin, &svc.BasePriceMax, &difficulty, &duration,
		&svc.WarrantyDays, &svc.Active,
	)
	svc.Difficulty = catalog.Difficulty(difficulty)
	svc.EstimatedDuration = time.Duration(duration)
	return svc, err
}

package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog lookups.
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrBrandNotFound   = errors.New("brand not found")
)

// Difficulty classifies how hard a repair is to perform. For brands it rates
// how service-unfriendly the hardware is; the rating drives a price multiplier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Multiplier returns the price multiplier for the difficulty rating.
// Unknown or empty ratings fall back to 1.0.
func (d Difficulty) Multiplier() decimal.Decimal {
	switch d {
	case DifficultyMedium:
		return decimal.RequireFromString("1.1")
	case DifficultyHard:
		return decimal.RequireFromString("1.3")
	case DifficultyExpert:
		return decimal.RequireFromString("1.5")
	default:
		return decimal.NewFromInt(1)
	}
}

// Service is a repair service offered in the catalog.
type Service struct {
	ID               string
	Name             string
	Slug             string
	Category         string
	ShortDescription string

	BasePriceMin decimal.Decimal
	BasePriceMax decimal.Decimal

	Difficulty        Difficulty
	EstimatedDuration time.Duration
	WarrantyDays      int

	Active bool
}

// Brand is a laptop manufacturer with a service-difficulty rating.
type Brand struct {
	ID                string
	Name              string
	ServiceDifficulty Difficulty
}

// Repository defines read operations for the service and brand catalog.
type Repository interface {
	ListServices(ctx context.Context) ([]Service, error)
	GetService(ctx context.Context, id string) (*Service, error)
	GetBrand(ctx context.Context, id string) (*Brand, error)
}

// Package pricing computes repair price estimates from a service's base price
// range, the brand's service-difficulty rating, the job priority, and the
// customer's membership discount.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/optiontech/servicedesk/internal/domain/catalog"
)

// Priority is the requested turnaround speed for a repair job.
type Priority string

const (
	PriorityStandard  Priority = "standard"
	PriorityExpress   Priority = "express"
	PriorityEmergency Priority = "emergency"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityStandard, PriorityExpress, PriorityEmergency:
		return true
	}
	return false
}

// Multiplier returns the price multiplier for the priority.
// Unknown priorities fall back to the standard multiplier.
func (p Priority) Multiplier() decimal.Decimal {
	switch p {
	case PriorityExpress:
		return decimal.RequireFromString("1.5")
	case PriorityEmergency:
		return decimal.NewFromInt(2)
	default:
		return decimal.NewFromInt(1)
	}
}

var hundred = decimal.NewFromInt(100)

// Range is a computed price estimate with inclusive bounds.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Collapsed reports whether the rounded bounds are equal, in which case the
// range displays as a single value.
func (r Range) Collapsed() bool {
	return r.Min.Equal(r.Max)
}

// Quote computes the price range for a service. Each bound is multiplied by
// the brand multiplier, then the priority multiplier, then reduced by the
// member discount percentage, always in that order, and finally rounded to
// 2 decimal places. A nil brand means no brand surcharge.
func Quote(svc *catalog.Service, brand *catalog.Brand, priority Priority, memberDiscountPct decimal.Decimal) Range {
	brandMult := decimal.NewFromInt(1)
	if brand != nil {
		brandMult = brand.ServiceDifficulty.Multiplier()
	}
	prioMult := priority.Multiplier()

	return Range{
		Min: calculate(svc.BasePriceMin, brandMult, prioMult, memberDiscountPct),
		Max: calculate(svc.BasePriceMax, brandMult, prioMult, memberDiscountPct),
	}
}

func calculate(base, brandMult, prioMult, discountPct decimal.Decimal) decimal.Decimal {
	price := base.Mul(brandMult).Mul(prioMult)
	if discountPct.IsPositive() {
		price = price.Sub(price.Mul(discountPct).Div(hundred))
	}
	return price.Round(2)
}

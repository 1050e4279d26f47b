package customer

import "github.com/shopspring/decimal"

// Tier is a loyalty membership level derived from lifetime points.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Admission thresholds in lifetime points.
const (
	silverThreshold   = 2000
	goldThreshold     = 5000
	platinumThreshold = 10000
)

// TierFor maps a lifetime point total to its membership tier. It is pure and
// idempotent; callers detect tier changes by comparing against the stored tier.
func TierFor(lifetimePoints int) Tier {
	switch {
	case lifetimePoints >= platinumThreshold:
		return TierPlatinum
	case lifetimePoints >= goldThreshold:
		return TierGold
	case lifetimePoints >= silverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// Discount returns the membership discount percentage for the tier.
func (t Tier) Discount() decimal.Decimal {
	switch t {
	case TierSilver:
		return decimal.NewFromInt(5)
	case TierGold:
		return decimal.NewFromInt(10)
	case TierPlatinum:
		return decimal.NewFromInt(15)
	default:
		return decimal.Zero
	}
}

// rank orders tiers for minimum-tier comparisons.
func (t Tier) rank() int {
	switch t {
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierPlatinum:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether t is equal to or above other in the tier ordering.
func (t Tier) AtLeast(other Tier) bool {
	return t.rank() >= other.rank()
}

// PointsToNext returns how many lifetime points are still needed to reach the
// next tier. It returns 0 for Platinum.
func PointsToNext(lifetimePoints int) int {
	var next int
	switch TierFor(lifetimePoints) {
	case TierBronze:
		next = silverThreshold
	case TierSilver:
		next = goldThreshold
	case TierGold:
		next = platinumThreshold
	default:
		return 0
	}
	return next - lifetimePoints
}

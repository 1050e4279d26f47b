package loyalty

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiontech/servicedesk/internal/domain/customer"
)

// memRewardStore mimics the repository's transactional contract for Redeem:
// mutations run against copies and are only applied when fn succeeds.
type memRewardStore struct {
	customer    *customer.Customer
	reward      *Reward
	entries     []Entry
	redemptions []Redemption
}

func (m *memRewardStore) GetReward(_ context.Context, id string) (*Reward, error) {
	if m.reward == nil || m.reward.ID != id {
		return nil, ErrRewardNotFound
	}
	rw := *m.reward
	return &rw, nil
}

func (m *memRewardStore) ListRewards(context.Context) ([]Reward, error) {
	if m.reward == nil {
		return nil, nil
	}
	return []Reward{*m.reward}, nil
}

func (m *memRewardStore) Redeem(_ context.Context, _, rewardID string, fn RedeemFunc) (*Redemption, error) {
	if m.reward == nil || m.reward.ID != rewardID {
		return nil, ErrRewardNotFound
	}

	custCopy := *m.customer
	rwCopy := *m.reward
	entry, red, err := fn(&custCopy, &rwCopy)
	if err != nil {
		return nil, err
	}

	*m.customer = custCopy
	rwCopy.Redemptions++
	*m.reward = rwCopy
	m.entries = append(m.entries, *entry)
	m.redemptions = append(m.redemptions, *red)
	return red, nil
}

func activeReward() *Reward {
	return &Reward{
		ID:             "discount-5",
		Name:           "5% Service Discount",
		Kind:           RewardPercentage,
		PointsRequired: 500,
		MinTier:        customer.TierBronze,
		Active:         true,
	}
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestCheckEligibilityOrder(t *testing.T) {
	now := fixedNow()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	base := func() (*customer.Customer, *Reward) {
		return bronzeCustomer(1000, 1000), activeReward()
	}

	t.Run("eligible", func(t *testing.T) {
		c, rw := base()
		assert.NoError(t, CheckEligibility(c, rw, now))
	})

	t.Run("inactive reported first", func(t *testing.T) {
		c, rw := base()
		rw.Active = false
		rw.MinTier = customer.TierPlatinum
		c.PointBalance = 0
		assert.ErrorIs(t, CheckEligibility(c, rw, now), ErrRewardUnavailable)
	})

	t.Run("tier before balance", func(t *testing.T) {
		c, rw := base()
		rw.MinTier = customer.TierPlatinum
		c.PointBalance = 0
		assert.ErrorIs(t, CheckEligibility(c, rw, now), ErrTierTooLow)
	})

	t.Run("balance before window", func(t *testing.T) {
		c, rw := base()
		c.PointBalance = 499
		rw.AvailableUntil = &past
		assert.ErrorIs(t, CheckEligibility(c, rw, now), ErrInsufficientBalance)
	})

	t.Run("window not yet open", func(t *testing.T) {
		c, rw := base()
		rw.AvailableFrom = &future
		assert.ErrorIs(t, CheckEligibility(c, rw, now), ErrRewardWindowOver)
	})

	t.Run("window closed", func(t *testing.T) {
		c, rw := base()
		rw.AvailableUntil = &past
		assert.ErrorIs(t, CheckEligibility(c, rw, now), ErrRewardWindowOver)
	})

	t.Run("cap reached", func(t *testing.T) {
		c, rw := base()
		rw.MaxRedemptions = 10
		rw.Redemptions = 10
		assert.ErrorIs(t, CheckEligibility(c, rw, now), ErrRewardSoldOut)
	})

	t.Run("zero cap means uncapped", func(t *testing.T) {
		c, rw := base()
		rw.MaxRedemptions = 0
		rw.Redemptions = 100000
		assert.NoError(t, CheckEligibility(c, rw, now))
	})
}

func TestRedeemerRedeem(t *testing.T) {
	c := bronzeCustomer(500, 500)
	store := &memRewardStore{customer: c, reward: activeReward()}
	r := NewRedeemer(store)
	r.now = fixedNow

	red, err := r.Redeem(context.Background(), c.ID, "discount-5", "")
	require.NoError(t, err)

	assert.Equal(t, "discount-5", red.RewardID)
	assert.Equal(t, 500, red.PointsUsed)
	assert.Equal(t, RedemptionPending, red.Status)
	assert.Len(t, red.VoucherCode, 12)
	assert.Equal(t, fixedNow().Add(VoucherTTL), red.ExpiresAt)

	// Balance drained to exactly zero, lifetime untouched.
	assert.Equal(t, 0, c.PointBalance)
	assert.Equal(t, 500, c.LifetimePoints)

	require.Len(t, store.entries, 1)
	assert.Equal(t, -500, store.entries[0].Delta)
	assert.Equal(t, KindRedeemed, store.entries[0].Kind)
	assert.Equal(t, 1, store.reward.Redemptions)
}

func TestRedeemerRedeemFailureLeavesNothing(t *testing.T) {
	c := bronzeCustomer(100, 100)
	store := &memRewardStore{customer: c, reward: activeReward()}
	r := NewRedeemer(store)
	r.now = fixedNow

	_, err := r.Redeem(context.Background(), c.ID, "discount-5", "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, 100, c.PointBalance)
	assert.Empty(t, store.entries)
	assert.Empty(t, store.redemptions)
	assert.Equal(t, 0, store.reward.Redemptions)
}

func TestRedeemerCheck(t *testing.T) {
	c := bronzeCustomer(1000, 1000)
	store := &memRewardStore{customer: c, reward: activeReward()}
	r := NewRedeemer(store)
	r.now = fixedNow

	assert.NoError(t, r.Check(context.Background(), c, "discount-5"))
	assert.ErrorIs(t, r.Check(context.Background(), c, "missing"), ErrRewardNotFound)
}

func TestNewVoucherCodeAlphabet(t *testing.T) {
	for range 50 {
		code := NewVoucherCode()
		require.Len(t, code, 12)
		for _, r := range code {
			assert.NotContains(t, "0O1I", string(r))
		}
	}
}

package coins

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloramarket/velora-backend/pkg/db/models"
	pkgerrors "github.com/veloramarket/velora-backend/pkg/errors"
)

func lotFixture(id uuid.UUID, total, used, expired int, earnedAt, redeemableAt, expiresAt time.Time) models.CoinLot {
	return models.CoinLot{
		ID:           id,
		UserID:       uuid.New(),
		CoinsTotal:   total,
		CoinsUsed:    used,
		CoinsExpired: expired,
		EarnedAt:     earnedAt,
		RedeemableAt: redeemableAt,
		ExpiresAt:    expiresAt,
	}
}

func TestPlanRedemptionDrainsNearestExpiryFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	soon := lotFixture(uuid.New(), 30, 0, 0, now.AddDate(0, -2, 0), now.AddDate(0, -2, 7), now.AddDate(0, 1, 0))
	later := lotFixture(uuid.New(), 50, 0, 0, now.AddDate(0, -3, 0), now.AddDate(0, -3, 7), now.AddDate(0, 6, 0))

	// Input deliberately out of order; the planner must sort by expiry.
	allocations, err := PlanRedemption([]models.CoinLot{later, soon}, now, 40)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, soon.ID, allocations[0].LotID)
	assert.Equal(t, 30, allocations[0].Coins)
	assert.Equal(t, later.ID, allocations[1].LotID)
	assert.Equal(t, 10, allocations[1].Coins)
}

func TestPlanRedemptionBreaksExpiryTiesByEarnedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 2, 0)
	older := lotFixture(uuid.New(), 10, 0, 0, now.AddDate(0, -4, 0), now.AddDate(0, -4, 7), expiry)
	newer := lotFixture(uuid.New(), 10, 0, 0, now.AddDate(0, -1, 0), now.AddDate(0, -1, 7), expiry)

	allocations, err := PlanRedemption([]models.CoinLot{newer, older}, now, 15)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, older.ID, allocations[0].LotID)
	assert.Equal(t, 10, allocations[0].Coins)
	assert.Equal(t, newer.ID, allocations[1].LotID)
	assert.Equal(t, 5, allocations[1].Coins)
}

func TestPlanRedemptionSkipsHeldAndExpiredLots(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	held := lotFixture(uuid.New(), 100, 0, 0, now.AddDate(0, 0, -3), now.AddDate(0, 0, 4), now.AddDate(1, 0, 0))
	expired := lotFixture(uuid.New(), 100, 0, 0, now.AddDate(-1, -1, 0), now.AddDate(-1, -1, 7), now.AddDate(0, 0, -1))
	drained := lotFixture(uuid.New(), 20, 15, 5, now.AddDate(0, -2, 0), now.AddDate(0, -2, 7), now.AddDate(0, 6, 0))
	usable := lotFixture(uuid.New(), 25, 5, 0, now.AddDate(0, -2, 0), now.AddDate(0, -2, 7), now.AddDate(0, 6, 0))

	allocations, err := PlanRedemption([]models.CoinLot{held, expired, drained, usable}, now, 20)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, usable.ID, allocations[0].LotID)
	assert.Equal(t, 20, allocations[0].Coins)
}

func TestPlanRedemptionRespectsPartialConsumption(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lot := lotFixture(uuid.New(), 50, 30, 10, now.AddDate(0, -2, 0), now.AddDate(0, -2, 7), now.AddDate(0, 6, 0))

	allocations, err := PlanRedemption([]models.CoinLot{lot}, now, 10)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, 10, allocations[0].Coins)

	_, err = PlanRedemption([]models.CoinLot{lot}, now, 11)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAllocationFailed))
}

func TestPlanRedemptionShortfall(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lot := lotFixture(uuid.New(), 30, 0, 0, now.AddDate(0, -2, 0), now.AddDate(0, -2, 7), now.AddDate(0, 6, 0))

	_, err := PlanRedemption([]models.CoinLot{lot}, now, 45)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAllocationFailed))

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	details, ok := appErr.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 45, details["requested"])
	assert.Equal(t, 30, details["redeemable"])
}

func TestPlanRedemptionRejectsNonPositiveAmounts(t *testing.T) {
	now := time.Now()
	for _, amount := range []int{0, -5} {
		_, err := PlanRedemption(nil, now, amount)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	}
}

func TestPlanRedemptionExactCoverLeavesNoRemainder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := lotFixture(uuid.New(), 10, 0, 0, now.AddDate(0, -2, 0), now.AddDate(0, -2, 7), now.AddDate(0, 1, 0))
	second := lotFixture(uuid.New(), 10, 0, 0, now.AddDate(0, -2, 0), now.AddDate(0, -2, 7), now.AddDate(0, 2, 0))

	allocations, err := PlanRedemption([]models.CoinLot{first, second}, now, 20)
	require.NoError(t, err)

	total := 0
	for _, allocation := range allocations {
		total += allocation.Coins
	}
	assert.Equal(t, 20, total)
}

package coins

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/veloramarket/velora-backend/pkg/db/models"
	pkgerrors "github.com/veloramarket/velora-backend/pkg/errors"
)

// Allocation records how many coins a single lot contributes to a redemption.
type Allocation struct {
	LotID uuid.UUID `json:"lot_id"`
	Coins int       `json:"coins"`
}

// PlanRedemption decides which lots cover the requested amount. It is a pure
// function over its inputs so the allocation order can be tested without a
// database.
//
// Lots still inside their hold window or past expiry are skipped. Eligible
// lots drain in expiry order, oldest earn first on ties, so coins closest to
// being forfeited are spent first. A plan that cannot cover the request fails
// as an allocation error with the redeemable total in the details; the caller
// decides separately whether the overall balance was even large enough.
func PlanRedemption(lots []models.CoinLot, now time.Time, requested int) ([]Allocation, error) {
	if requested <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "redemption amount must be positive")
	}

	eligible := make([]models.CoinLot, 0, len(lots))
	for _, lot := range lots {
		if !lot.RedeemableNow(now) || !lot.ExpiresAt.After(now) {
			continue
		}
		eligible = append(eligible, lot)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if !eligible[i].ExpiresAt.Equal(eligible[j].ExpiresAt) {
			return eligible[i].ExpiresAt.Before(eligible[j].ExpiresAt)
		}
		return eligible[i].EarnedAt.Before(eligible[j].EarnedAt)
	})

	remaining := requested
	allocations := make([]Allocation, 0, len(eligible))
	for _, lot := range eligible {
		if remaining == 0 {
			break
		}
		take := lot.Available()
		if take > remaining {
			take = remaining
		}
		allocations = append(allocations, Allocation{LotID: lot.ID, Coins: take})
		remaining -= take
	}

	if remaining > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAllocationFailed, "redeemable lots cannot cover request").
			WithDetails(map[string]any{
				"requested":  requested,
				"redeemable": requested - remaining,
			})
	}
	return allocations, nil
}

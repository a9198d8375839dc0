package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoinTxnKindTransitions(t *testing.T) {
	resolutions := []CoinTxnKind{CoinTxnKindEarn, CoinTxnKindCancelled, CoinTxnKindReversal}
	for _, target := range resolutions {
		assert.True(t, CoinTxnKindPending.CanTransitionTo(target), "pending -> %s", target)
	}

	assert.False(t, CoinTxnKindPending.CanTransitionTo(CoinTxnKindRedeem))
	assert.False(t, CoinTxnKindPending.CanTransitionTo(CoinTxnKindExpire))
	assert.False(t, CoinTxnKindPending.CanTransitionTo(CoinTxnKindPending))

	// Everything except pending is immutable.
	for _, from := range []CoinTxnKind{CoinTxnKindEarn, CoinTxnKindRedeem, CoinTxnKindExpire, CoinTxnKindReversal, CoinTxnKindCancelled} {
		for _, to := range validCoinTxnKinds {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s must be rejected", from, to)
		}
	}
}

func TestParseCoinTxnKind(t *testing.T) {
	kind, err := ParseCoinTxnKind("redeem")
	assert.NoError(t, err)
	assert.Equal(t, CoinTxnKindRedeem, kind)

	_, err = ParseCoinTxnKind("granted")
	assert.Error(t, err)
}

func TestParseCoinRefKind(t *testing.T) {
	kind, err := ParseCoinRefKind("presale")
	assert.NoError(t, err)
	assert.Equal(t, CoinRefKindPresale, kind)

	_, err = ParseCoinRefKind("coupon")
	assert.Error(t, err)
}

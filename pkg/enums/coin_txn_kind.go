package enums

import "fmt"

// CoinTxnKind maps to the coin_txn_kind_enum enum in Postgres.
type CoinTxnKind string

const (
	CoinTxnKindPending   CoinTxnKind = "pending"
	CoinTxnKindEarn      CoinTxnKind = "earn"
	CoinTxnKindRedeem    CoinTxnKind = "redeem"
	CoinTxnKindExpire    CoinTxnKind = "expire"
	CoinTxnKindReversal  CoinTxnKind = "reversal"
	CoinTxnKindCancelled CoinTxnKind = "cancelled"
)

var validCoinTxnKinds = []CoinTxnKind{
	CoinTxnKindPending,
	CoinTxnKindEarn,
	CoinTxnKindRedeem,
	CoinTxnKindExpire,
	CoinTxnKindReversal,
	CoinTxnKindCancelled,
}

// allowedKindTransitions is the full transition table. A pending transaction
// resolves exactly once; every other kind is immutable after it is written.
var allowedKindTransitions = map[CoinTxnKind][]CoinTxnKind{
	CoinTxnKindPending: {
		CoinTxnKindEarn,
		CoinTxnKindCancelled,
		CoinTxnKindReversal,
	},
}

// IsValid reports whether the value matches the canonical transaction kind enum.
func (k CoinTxnKind) IsValid() bool {
	for _, candidate := range validCoinTxnKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether flipping this kind to target is legal.
func (k CoinTxnKind) CanTransitionTo(target CoinTxnKind) bool {
	for _, candidate := range allowedKindTransitions[k] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseCoinTxnKind converts raw input into CoinTxnKind.
func ParseCoinTxnKind(value string) (CoinTxnKind, error) {
	for _, candidate := range validCoinTxnKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coin transaction kind %q", value)
}

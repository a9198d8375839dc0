package enums

import "fmt"

// CoinRefKind maps to the coin_ref_kind_enum enum in Postgres. It names the
// entity a coin transaction points at.
type CoinRefKind string

const (
	CoinRefKindOrder   CoinRefKind = "order"
	CoinRefKindPresale CoinRefKind = "presale"
	CoinRefKindLot     CoinRefKind = "lot"
	CoinRefKindWallet  CoinRefKind = "wallet"
)

var validCoinRefKinds = []CoinRefKind{
	CoinRefKindOrder,
	CoinRefKindPresale,
	CoinRefKindLot,
	CoinRefKindWallet,
}

// IsValid reports whether the value matches the canonical ref kind enum.
func (k CoinRefKind) IsValid() bool {
	for _, candidate := range validCoinRefKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseCoinRefKind converts raw input into CoinRefKind.
func ParseCoinRefKind(value string) (CoinRefKind, error) {
	for _, candidate := range validCoinRefKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coin ref kind %q", value)
}

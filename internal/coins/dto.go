package coins

import (
	"time"

	"github.com/google/uuid"

	"github.com/veloramarket/velora-backend/pkg/enums"
	"github.com/veloramarket/velora-backend/pkg/pagination"
)

// PendingRef identifies the pending award for an originating business event.
// A reference holds at most one live pending transaction at a time.
type PendingRef struct {
	UserID  uuid.UUID
	RefKind enums.CoinRefKind
	RefID   string
}

// CreatePendingInput captures a provisional coin award.
type CreatePendingInput struct {
	UserID  uuid.UUID
	Coins   int
	RefKind enums.CoinRefKind
	RefID   string
}

// RedeemInput spends coins against the wallet.
type RedeemInput struct {
	UserID uuid.UUID
	Coins  int
	RefID  string
}

// ReverseEarnedInput claws back coins from an already-earned lot after a
// return or refund.
type ReverseEarnedInput struct {
	UserID     uuid.UUID
	Coins      int
	SourceKind enums.CoinRefKind
	SourceRef  string
}

// PendingResult describes the pending transaction after creation or resolution.
type PendingResult struct {
	TransactionID uuid.UUID         `json:"transaction_id"`
	Kind          enums.CoinTxnKind `json:"kind"`
	Coins         int               `json:"coins"`
	LotID         *uuid.UUID        `json:"lot_id,omitempty"`
}

// RedeemResult reports the lots drained by a redemption.
type RedeemResult struct {
	TransactionID uuid.UUID    `json:"transaction_id"`
	Coins         int          `json:"coins"`
	Allocations   []Allocation `json:"allocations"`
	Balance       int          `json:"balance"`
}

// ReverseEarnedResult reports how much of the requested clawback applied.
type ReverseEarnedResult struct {
	Requested int `json:"requested"`
	Reversed  int `json:"reversed"`
	Balance   int `json:"balance"`
}

// BalanceResult is the cached total of unconsumed, unexpired coins.
type BalanceResult struct {
	UserID     uuid.UUID `json:"user_id"`
	TotalCoins int       `json:"total_coins"`
}

// RedeemableResult is the portion of the balance usable right now.
type RedeemableResult struct {
	UserID          uuid.UUID `json:"user_id"`
	RedeemableCoins int       `json:"redeemable_coins"`
}

// HistoryEntry is one ledger transaction in the user's history.
type HistoryEntry struct {
	ID        uuid.UUID         `json:"id"`
	Kind      enums.CoinTxnKind `json:"kind"`
	Coins     int               `json:"coins"`
	RefKind   enums.CoinRefKind `json:"ref_kind"`
	RefID     string            `json:"ref_id"`
	CreatedAt time.Time         `json:"created_at"`
}

// HistoryResult wraps a page of transactions with pagination metadata.
type HistoryResult struct {
	Entries []HistoryEntry  `json:"entries"`
	Meta    pagination.Meta `json:"meta"`
}

// SweepResult summarizes one expiry sweep run.
type SweepResult struct {
	LotsExpired  int `json:"lots_expired"`
	CoinsExpired int `json:"coins_expired"`
}

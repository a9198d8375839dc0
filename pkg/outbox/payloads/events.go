package payloads

import (
	"time"

	"github.com/google/uuid"
)

// CoinsEarnedEvent is published when a pending transaction completes and its
// lot becomes redeemable-eligible stock.
type CoinsEarnedEvent struct {
	UserID       uuid.UUID `json:"userId"`
	LotID        uuid.UUID `json:"lotId"`
	Coins        int       `json:"coins"`
	RefKind      string    `json:"refKind"`
	RefID        string    `json:"refId"`
	RedeemableAt time.Time `json:"redeemableAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// CoinsRedeemedEvent is published after a redemption consumes lots and the
// wallet credit has been requested.
type CoinsRedeemedEvent struct {
	UserID uuid.UUID            `json:"userId"`
	Coins  int                  `json:"coins"`
	RefID  string               `json:"refId"`
	Lots   []RedeemedAllocation `json:"lots"`
}

// RedeemedAllocation records how many coins a single lot contributed.
type RedeemedAllocation struct {
	LotID uuid.UUID `json:"lotId"`
	Coins int       `json:"coins"`
}

// CoinsExpiredEvent is published per lot forfeited by the expiry sweep.
type CoinsExpiredEvent struct {
	UserID    uuid.UUID `json:"userId"`
	LotID     uuid.UUID `json:"lotId"`
	Coins     int       `json:"coins"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CoinsReversedEvent is published when a pending or earned award is clawed
// back after a cancellation or return.
type CoinsReversedEvent struct {
	UserID  uuid.UUID `json:"userId"`
	Coins   int       `json:"coins"`
	RefKind string    `json:"refKind"`
	RefID   string    `json:"refId"`
}

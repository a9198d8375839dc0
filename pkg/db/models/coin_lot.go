package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/veloramarket/velora-backend/pkg/enums"
)

// CoinLot is one batch of coins earned from a single fulfilled order. Lots
// only ever lose coins: redemption raises coins_used, the expiry sweep raises
// coins_expired. A lot is never deleted and never recreated for the same
// source reference.
type CoinLot struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	SourceKind   enums.CoinRefKind `gorm:"column:source_kind;type:coin_ref_kind_enum;not null"`
	SourceRef    string            `gorm:"column:source_ref;not null"`
	CoinsTotal   int               `gorm:"column:coins_total;not null"`
	CoinsUsed    int               `gorm:"column:coins_used;not null;default:0"`
	CoinsExpired int               `gorm:"column:coins_expired;not null;default:0"`
	EarnedAt     time.Time         `gorm:"column:earned_at;not null"`
	RedeemableAt time.Time         `gorm:"column:redeemable_at;not null"`
	ExpiresAt    time.Time         `gorm:"column:expires_at;not null"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (CoinLot) TableName() string {
	return "coin_lots"
}

// Available returns the coins still held by the lot.
func (l CoinLot) Available() int {
	return l.CoinsTotal - l.CoinsUsed - l.CoinsExpired
}

// RedeemableNow reports whether the lot can participate in a redemption.
func (l CoinLot) RedeemableNow(now time.Time) bool {
	return l.Available() > 0 && !l.RedeemableAt.After(now)
}

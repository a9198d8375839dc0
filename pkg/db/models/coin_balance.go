package models

import (
	"time"

	"github.com/google/uuid"
)

// CoinBalance caches the per-user total of unconsumed, unexpired coins.
// It always equals the sum of coins_total - coins_used - coins_expired
// across the user's lots at quiescence. Created lazily, never deleted.
type CoinBalance struct {
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	TotalCoins int       `gorm:"column:total_coins;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CoinBalance) TableName() string {
	return "coin_balances"
}

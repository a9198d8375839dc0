package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/veloramarket/velora-backend/pkg/enums"
)

// CoinTransaction is the append-only audit record of every ledger event.
// Rows of kind pending are the single exception to immutability: they resolve
// exactly once to earn, cancelled, or reversal. The partial unique index
// ux_coin_txns_live_pending keeps one live pending row per
// (user_id, ref_kind, ref_id).
type CoinTransaction struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	Kind      enums.CoinTxnKind `gorm:"column:kind;type:coin_txn_kind_enum;not null"`
	Coins     int               `gorm:"column:coins;not null"`
	RefKind   enums.CoinRefKind `gorm:"column:ref_kind;type:coin_ref_kind_enum;not null"`
	RefID     string            `gorm:"column:ref_id;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (CoinTransaction) TableName() string {
	return "coin_transactions"
}

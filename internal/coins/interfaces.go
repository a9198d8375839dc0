package coins

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veloramarket/velora-backend/pkg/db/models"
	"github.com/veloramarket/velora-backend/pkg/enums"
	"github.com/veloramarket/velora-backend/pkg/pagination"
)

// Repository defines persistence operations for the coin ledger tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// LockBalance upserts the user's balance row and returns it under a row
	// lock. Must run inside a transaction.
	LockBalance(ctx context.Context, userID uuid.UUID) (*models.CoinBalance, error)
	FindBalance(ctx context.Context, userID uuid.UUID) (*models.CoinBalance, error)
	// AdjustBalance applies delta with a non-negative guard. Returns false
	// when the guard rejects the update.
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta int) (bool, error)

	CreateLot(ctx context.Context, lot *models.CoinLot) error
	FindLotBySource(ctx context.Context, userID uuid.UUID, kind enums.CoinRefKind, ref string) (*models.CoinLot, error)
	// FindLotForUpdate returns the lot locked for the transaction.
	FindLotForUpdate(ctx context.Context, id uuid.UUID) (*models.CoinLot, error)
	// ListRedeemableLotsForUpdate returns lots with coins available, past
	// their hold, and not yet expired, ordered expires_at ASC then
	// earned_at ASC, locked for the transaction.
	ListRedeemableLotsForUpdate(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.CoinLot, error)
	// ConsumeLot raises coins_used by coins, guarded so the lot can never go
	// below zero available. Returns false when the guard rejects the update.
	ConsumeLot(ctx context.Context, lotID uuid.UUID, coins int) (bool, error)
	// ReduceLotTotal lowers coins_total by coins for an earned-award
	// reversal, guarded the same way as ConsumeLot.
	ReduceLotTotal(ctx context.Context, lotID uuid.UUID, coins int) (bool, error)
	// ExpireLotRemainder forfeits coins from the lot by raising
	// coins_expired, guarded against concurrent consumption.
	ExpireLotRemainder(ctx context.Context, lotID uuid.UUID, coins int) (bool, error)
	ListExpirableLots(ctx context.Context, now time.Time, limit int) ([]models.CoinLot, error)
	SumRedeemable(ctx context.Context, userID uuid.UUID, now time.Time) (int, error)

	CreateTransaction(ctx context.Context, txn *models.CoinTransaction) error
	FindTransaction(ctx context.Context, id uuid.UUID) (*models.CoinTransaction, error)
	// FindLivePendingForUpdate returns the unresolved pending transaction for
	// the reference, locked for the transaction.
	FindLivePendingForUpdate(ctx context.Context, userID uuid.UUID, refKind enums.CoinRefKind, refID string) (*models.CoinTransaction, error)
	// ResolvePending flips a pending row to its terminal kind, guarded on the
	// row still being pending. Returns false when another writer resolved it
	// first.
	ResolvePending(ctx context.Context, id uuid.UUID, to enums.CoinTxnKind) (bool, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CoinTransaction, int64, error)
}

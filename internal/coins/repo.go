package coins

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veloramarket/velora-backend/pkg/db/models"
	"github.com/veloramarket/velora-backend/pkg/enums"
	"github.com/veloramarket/velora-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a coin ledger repository bound to the provided database.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// forUpdate applies a row lock on dialects that support it. The sqlite driver
// used in tests serializes writers on its own.
func (r *repository) forUpdate(q *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() != "postgres" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *repository) LockBalance(ctx context.Context, userID uuid.UUID) (*models.CoinBalance, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&models.CoinBalance{UserID: userID}).Error
	if err != nil {
		return nil, err
	}

	var balance models.CoinBalance
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if err := r.forUpdate(query).First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) FindBalance(ctx context.Context, userID uuid.UUID) (*models.CoinBalance, error) {
	var balance models.CoinBalance
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) AdjustBalance(ctx context.Context, userID uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.CoinBalance{}).
		Where("user_id = ? AND total_coins + ? >= 0", userID, delta).
		Updates(map[string]any{
			"total_coins": gorm.Expr("total_coins + ?", delta),
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateLot(ctx context.Context, lot *models.CoinLot) error {
	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(lot).Error
}

func (r *repository) FindLotBySource(ctx context.Context, userID uuid.UUID, kind enums.CoinRefKind, ref string) (*models.CoinLot, error) {
	var lot models.CoinLot
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND source_kind = ? AND source_ref = ?", userID, kind, ref)
	if err := r.forUpdate(query).First(&lot).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *repository) FindLotForUpdate(ctx context.Context, id uuid.UUID) (*models.CoinLot, error) {
	var lot models.CoinLot
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if err := r.forUpdate(query).First(&lot).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *repository) ListRedeemableLotsForUpdate(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.CoinLot, error) {
	var lots []models.CoinLot
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("coins_total - coins_used - coins_expired > 0").
		Where("redeemable_at <= ?", now).
		Where("expires_at > ?", now).
		Order("expires_at ASC").
		Order("earned_at ASC").
		Order("id ASC")
	if err := r.forUpdate(query).Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}

func (r *repository) ConsumeLot(ctx context.Context, lotID uuid.UUID, coins int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.CoinLot{}).
		Where("id = ? AND coins_total - coins_used - coins_expired >= ?", lotID, coins).
		Updates(map[string]any{
			"coins_used": gorm.Expr("coins_used + ?", coins),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ReduceLotTotal(ctx context.Context, lotID uuid.UUID, coins int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.CoinLot{}).
		Where("id = ? AND coins_total - coins_used - coins_expired >= ?", lotID, coins).
		Updates(map[string]any{
			"coins_total": gorm.Expr("coins_total - ?", coins),
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ExpireLotRemainder(ctx context.Context, lotID uuid.UUID, coins int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.CoinLot{}).
		Where("id = ? AND coins_total - coins_used - coins_expired >= ?", lotID, coins).
		Updates(map[string]any{
			"coins_expired": gorm.Expr("coins_expired + ?", coins),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListExpirableLots(ctx context.Context, now time.Time, limit int) ([]models.CoinLot, error) {
	var lots []models.CoinLot
	err := r.db.WithContext(ctx).
		Where("coins_total - coins_used - coins_expired > 0").
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

func (r *repository) SumRedeemable(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	var total *int
	err := r.db.WithContext(ctx).Model(&models.CoinLot{}).
		Select("SUM(coins_total - coins_used - coins_expired)").
		Where("user_id = ?", userID).
		Where("coins_total - coins_used - coins_expired > 0").
		Where("redeemable_at <= ?", now).
		Where("expires_at > ?", now).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.CoinTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindTransaction(ctx context.Context, id uuid.UUID) (*models.CoinTransaction, error) {
	var txn models.CoinTransaction
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindLivePendingForUpdate(ctx context.Context, userID uuid.UUID, refKind enums.CoinRefKind, refID string) (*models.CoinTransaction, error) {
	var txn models.CoinTransaction
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND ref_kind = ? AND ref_id = ? AND kind = ?",
			userID, refKind, refID, enums.CoinTxnKindPending)
	if err := r.forUpdate(query).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ResolvePending(ctx context.Context, id uuid.UUID, to enums.CoinTxnKind) (bool, error) {
	if !enums.CoinTxnKindPending.CanTransitionTo(to) {
		return false, nil
	}
	res := r.db.WithContext(ctx).Model(&models.CoinTransaction{}).
		Where("id = ? AND kind = ?", id, enums.CoinTxnKindPending).
		Updates(map[string]any{
			"kind":       to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CoinTransaction, int64, error) {
	params = params.Normalize()

	var total int64
	base := r.db.WithContext(ctx).Model(&models.CoinTransaction{}).
		Where("user_id = ?", userID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []models.CoinTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

package coins

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/veloramarket/velora-backend/pkg/db/models"
	"github.com/veloramarket/velora-backend/pkg/enums"
	"github.com/veloramarket/velora-backend/pkg/pagination"
)

func setupCoinsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	balances := `
CREATE TABLE IF NOT EXISTS coin_balances (
  user_id TEXT PRIMARY KEY,
  total_coins INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	lots := `
CREATE TABLE IF NOT EXISTS coin_lots (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  source_kind TEXT NOT NULL,
  source_ref TEXT NOT NULL,
  coins_total INTEGER NOT NULL,
  coins_used INTEGER NOT NULL DEFAULT 0,
  coins_expired INTEGER NOT NULL DEFAULT 0,
  earned_at DATETIME NOT NULL,
  redeemable_at DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_coin_lots_source
  ON coin_lots (user_id, source_kind, source_ref);`
	txns := `
CREATE TABLE IF NOT EXISTS coin_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  coins INTEGER NOT NULL,
  ref_kind TEXT NOT NULL,
  ref_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_coin_txns_live_pending
  ON coin_transactions (user_id, ref_kind, ref_id) WHERE kind = 'pending';`

	for _, ddl := range []string{balances, lots, txns} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedLot(t *testing.T, db *gorm.DB, userID uuid.UUID, total, used int, redeemableAt, expiresAt time.Time) models.CoinLot {
	t.Helper()
	lot := models.CoinLot{
		ID:           uuid.New(),
		UserID:       userID,
		SourceKind:   enums.CoinRefKindOrder,
		SourceRef:    uuid.NewString(),
		CoinsTotal:   total,
		CoinsUsed:    used,
		EarnedAt:     redeemableAt.AddDate(0, 0, -7),
		RedeemableAt: redeemableAt,
		ExpiresAt:    expiresAt,
	}
	require.NoError(t, db.Create(&lot).Error)
	return lot
}

func TestRepositoryLockBalanceUpserts(t *testing.T) {
	db := setupCoinsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	balance, err := repo.LockBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, balance.UserID)
	assert.Equal(t, 0, balance.TotalCoins)

	ok, err := repo.AdjustBalance(ctx, userID, 40)
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := repo.LockBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 40, again.TotalCoins)
}

func TestRepositoryAdjustBalanceGuardsNegative(t *testing.T) {
	db := setupCoinsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	_, err := repo.LockBalance(ctx, userID)
	require.NoError(t, err)

	ok, err := repo.AdjustBalance(ctx, userID, 25)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.AdjustBalance(ctx, userID, -30)
	require.NoError(t, err)
	assert.False(t, ok, "debit past zero must be rejected")

	balance, err := repo.FindBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 25, balance.TotalCoins)
}

func TestRepositoryConsumeLotGuard(t *testing.T) {
	db := setupCoinsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	lot := seedLot(t, db, userID, 50, 45, now.AddDate(0, 0, -1), now.AddDate(0, 6, 0))

	ok, err := repo.ConsumeLot(ctx, lot.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ConsumeLot(ctx, lot.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "drained lot must reject further consumption")
}

func TestRepositoryListRedeemableLotsOrdering(t *testing.T) {
	db := setupCoinsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	late := seedLot(t, db, userID, 10, 0, now.AddDate(0, 0, -10), now.AddDate(0, 8, 0))
	early := seedLot(t, db, userID, 10, 0, now.AddDate(0, 0, -10), now.AddDate(0, 2, 0))
	held := seedLot(t, db, userID, 10, 0, now.AddDate(0, 0, 3), now.AddDate(0, 8, 0))
	expired := seedLot(t, db, userID, 10, 0, now.AddDate(0, -7, 0), now.AddDate(0, 0, -1))
	drained := seedLot(t, db, userID, 10, 10, now.AddDate(0, 0, -10), now.AddDate(0, 8, 0))
	_ = held
	_ = expired
	_ = drained

	lots, err := repo.ListRedeemableLotsForUpdate(ctx, userID, now)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, early.ID, lots[0].ID)
	assert.Equal(t, late.ID, lots[1].ID)
}

func TestRepositorySumRedeemable(t *testing.T) {
	db := setupCoinsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	seedLot(t, db, userID, 30, 10, now.AddDate(0, 0, -1), now.AddDate(0, 6, 0))
	seedLot(t, db, userID, 15, 0, now.AddDate(0, 0, 2), now.AddDate(0, 6, 0))

	total, err := repo.SumRedeemable(ctx, userID, now)
	require.NoError(t, err)
	assert.Equal(t, 20, total)

	empty, err := repo.SumRedeemable(ctx, uuid.New(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, empty)
}

func TestRepositoryExpireLotRemainderIdempotent(t *testing.T) {
	db := setupCoinsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	lot := seedLot(t, db, userID, 40, 15, now.AddDate(0, -13, 0), now.AddDate(0, 0, -1))

	ok, err := repo.ExpireLotRemainder(ctx, lot.ID, 25)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ExpireLotRemainder(ctx, lot.ID, 25)
	require.NoError(t, err)
	assert.False(t, ok, "second expiry of the same remainder must be a no-op")

	stored, err := repo.FindLotForUpdate(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Available())
}

func TestRepositoryPendingLifecycle(t *testing.T) {
	db := setupCoinsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	refID := uuid.NewString()

	txn := models.CoinTransaction{
		ID:      uuid.New(),
		UserID:  userID,
		Kind:    enums.CoinTxnKindPending,
		Coins:   20,
		RefKind: enums.CoinRefKindOrder,
		RefID:   refID,
	}
	require.NoError(t, repo.CreateTransaction(ctx, &txn))

	// The partial unique index allows only one live pending per reference.
	dup := models.CoinTransaction{
		ID:      uuid.New(),
		UserID:  userID,
		Kind:    enums.CoinTxnKindPending,
		Coins:   5,
		RefKind: enums.CoinRefKindOrder,
		RefID:   refID,
	}
	require.Error(t, repo.CreateTransaction(ctx, &dup))

	found, err := repo.FindLivePendingForUpdate(ctx, userID, enums.CoinRefKindOrder, refID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, found.ID)

	ok, err := repo.ResolvePending(ctx, txn.ID, enums.CoinTxnKindEarn)
	require.NoError(t, err)
	assert.True(t, ok)

	// Resolved rows are immutable and no longer live.
	ok, err = repo.ResolvePending(ctx, txn.ID, enums.CoinTxnKindCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.FindLivePendingForUpdate(ctx, userID, enums.CoinRefKindOrder, refID)
	require.Error(t, err)

	// The reference is reusable once the previous pending resolved.
	next := models.CoinTransaction{
		ID:      uuid.New(),
		UserID:  userID,
		Kind:    enums.CoinTxnKindPending,
		Coins:   8,
		RefKind: enums.CoinRefKindOrder,
		RefID:   refID,
	}
	require.NoError(t, repo.CreateTransaction(ctx, &next))
}

func TestRepositoryResolvePendingRejectsIllegalTarget(t *testing.T) {
	db := setupCoinsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	txn := models.CoinTransaction{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		Kind:    enums.CoinTxnKindPending,
		Coins:   10,
		RefKind: enums.CoinRefKindOrder,
		RefID:   uuid.NewString(),
	}
	require.NoError(t, repo.CreateTransaction(ctx, &txn))

	ok, err := repo.ResolvePending(ctx, txn.ID, enums.CoinTxnKindRedeem)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CoinTxnKindPending, stored.Kind)
}

func TestRepositoryListTransactionsPagination(t *testing.T) {
	db := setupCoinsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		txn := models.CoinTransaction{
			ID:        uuid.New(),
			UserID:    userID,
			Kind:      enums.CoinTxnKindEarn,
			Coins:     i + 1,
			RefKind:   enums.CoinRefKindOrder,
			RefID:     uuid.NewString(),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&txn).Error)
	}

	page, total, err := repo.ListTransactions(ctx, userID, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, 5, page[0].Coins, "newest first")

	last, _, err := repo.ListTransactions(ctx, userID, pagination.Params{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, 1, last[0].Coins)
}

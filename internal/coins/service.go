package coins

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/veloramarket/velora-backend/pkg/config"
	"github.com/veloramarket/velora-backend/pkg/db"
	"github.com/veloramarket/velora-backend/pkg/db/models"
	"github.com/veloramarket/velora-backend/pkg/enums"
	pkgerrors "github.com/veloramarket/velora-backend/pkg/errors"
	"github.com/veloramarket/velora-backend/pkg/logger"
	"github.com/veloramarket/velora-backend/pkg/metrics"
	"github.com/veloramarket/velora-backend/pkg/outbox"
	"github.com/veloramarket/velora-backend/pkg/outbox/payloads"
	"github.com/veloramarket/velora-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// WalletCreditor pushes redeemed coins to the user's store wallet.
type WalletCreditor interface {
	Credit(ctx context.Context, userID uuid.UUID, amount int) error
}

// Service defines the coin ledger operations.
type Service interface {
	CreatePending(ctx context.Context, input CreatePendingInput) (*PendingResult, error)
	CompletePending(ctx context.Context, ref PendingRef) (*PendingResult, error)
	CancelPending(ctx context.Context, ref PendingRef) (*PendingResult, error)
	ReversePending(ctx context.Context, ref PendingRef) (*PendingResult, error)
	ReverseEarned(ctx context.Context, input ReverseEarnedInput) (*ReverseEarnedResult, error)
	Redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error)
	SweepExpired(ctx context.Context) (*SweepResult, error)
	Balance(ctx context.Context, userID uuid.UUID) (*BalanceResult, error)
	RedeemableBalance(ctx context.Context, userID uuid.UUID) (*RedeemableResult, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryResult, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	wallet  WalletCreditor
	metrics *metrics.LedgerMetrics
	cfg     config.CoinsConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a coin ledger service with the required dependencies.
// The metrics collector may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	ob outboxPublisher,
	wallet WalletCreditor,
	ledgerMetrics *metrics.LedgerMetrics,
	cfg config.CoinsConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coins repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet creditor required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  ob,
		wallet:  wallet,
		metrics: ledgerMetrics,
		cfg:     cfg,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) CreatePending(ctx context.Context, input CreatePendingInput) (*PendingResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Coins <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coin amount must be positive")
	}
	if !input.RefKind.IsValid() || input.RefID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}

	txn := models.CoinTransaction{
		ID:      uuid.New(),
		UserID:  input.UserID,
		Kind:    enums.CoinTxnKindPending,
		Coins:   input.Coins,
		RefKind: input.RefKind,
		RefID:   input.RefID,
	}
	err := s.run(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.LockBalance(ctx, input.UserID); err != nil {
			return err
		}
		return repo.CreateTransaction(ctx, &txn)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "ux_coin_txns_live_pending") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "pending award already exists for reference")
		}
		return nil, err
	}

	s.logOp(ctx, "pending coins created", input.UserID, map[string]any{
		"transaction_id": txn.ID.String(),
		"coins":          input.Coins,
		"ref_kind":       input.RefKind,
		"ref_id":         input.RefID,
	})
	return &PendingResult{TransactionID: txn.ID, Kind: txn.Kind, Coins: txn.Coins}, nil
}

func (s *service) CompletePending(ctx context.Context, ref PendingRef) (*PendingResult, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	var result PendingResult
	err := s.run(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		if _, err := repo.LockBalance(ctx, ref.UserID); err != nil {
			return err
		}
		pending, err := repo.FindLivePendingForUpdate(ctx, ref.UserID, ref.RefKind, ref.RefID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "pending award not found")
			}
			return err
		}

		ok, err := repo.ResolvePending(ctx, pending.ID, enums.CoinTxnKindEarn)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConcurrency, "pending award resolved concurrently")
		}

		lot := models.CoinLot{
			ID:           uuid.New(),
			UserID:       ref.UserID,
			SourceKind:   ref.RefKind,
			SourceRef:    ref.RefID,
			CoinsTotal:   pending.Coins,
			EarnedAt:     now,
			RedeemableAt: now.Add(s.cfg.HoldPeriod()),
			ExpiresAt:    now.Add(s.cfg.ExpiryPeriod()),
		}
		if err := repo.CreateLot(ctx, &lot); err != nil {
			if db.IsUniqueViolation(err, "ux_coin_lots_source") {
				return pkgerrors.New(pkgerrors.CodeConflict, "lot already exists for reference")
			}
			return err
		}
		if ok, err := repo.AdjustBalance(ctx, ref.UserID, pending.Coins); err != nil {
			return err
		} else if !ok {
			return pkgerrors.New(pkgerrors.CodeInternal, "balance credit rejected")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCoinsEarned,
			AggregateType: enums.AggregateCoinLot,
			AggregateID:   lot.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.CoinsEarnedEvent{
				UserID:       ref.UserID,
				LotID:        lot.ID,
				Coins:        pending.Coins,
				RefKind:      string(ref.RefKind),
				RefID:        ref.RefID,
				RedeemableAt: lot.RedeemableAt,
				ExpiresAt:    lot.ExpiresAt,
			},
		}); err != nil {
			return err
		}

		lotID := lot.ID
		result = PendingResult{
			TransactionID: pending.ID,
			Kind:          enums.CoinTxnKindEarn,
			Coins:         pending.Coins,
			LotID:         &lotID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddEarned(result.Coins)
	s.logOp(ctx, "pending coins completed", ref.UserID, map[string]any{
		"transaction_id": result.TransactionID.String(),
		"coins":          result.Coins,
	})
	return &result, nil
}

func (s *service) CancelPending(ctx context.Context, ref PendingRef) (*PendingResult, error) {
	return s.resolveWithoutCredit(ctx, ref, enums.CoinTxnKindCancelled)
}

func (s *service) ReversePending(ctx context.Context, ref PendingRef) (*PendingResult, error) {
	result, err := s.resolveWithoutCredit(ctx, ref, enums.CoinTxnKindReversal)
	if err != nil {
		return nil, err
	}
	s.metrics.AddReversed(result.Coins)
	return result, nil
}

// resolveWithoutCredit flips a pending transaction to a terminal kind that
// never minted coins, so no lot or balance change is involved.
func (s *service) resolveWithoutCredit(ctx context.Context, ref PendingRef, to enums.CoinTxnKind) (*PendingResult, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	if !enums.CoinTxnKindPending.CanTransitionTo(to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "illegal pending transition")
	}

	var result PendingResult
	err := s.run(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		pending, err := repo.FindLivePendingForUpdate(ctx, ref.UserID, ref.RefKind, ref.RefID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "pending award not found")
			}
			return err
		}
		ok, err := repo.ResolvePending(ctx, pending.ID, to)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConcurrency, "pending award resolved concurrently")
		}

		if to == enums.CoinTxnKindReversal {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCoinsReversed,
				AggregateType: enums.AggregateCoinTransaction,
				AggregateID:   pending.ID,
				Version:       1,
				OccurredAt:    s.now(),
				Data: payloads.CoinsReversedEvent{
					UserID:  ref.UserID,
					Coins:   pending.Coins,
					RefKind: string(ref.RefKind),
					RefID:   ref.RefID,
				},
			}); err != nil {
				return err
			}
		}

		result = PendingResult{TransactionID: pending.ID, Kind: to, Coins: pending.Coins}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logOp(ctx, "pending coins resolved", ref.UserID, map[string]any{
		"transaction_id": result.TransactionID.String(),
		"kind":           to,
		"coins":          result.Coins,
	})
	return &result, nil
}

func (s *service) ReverseEarned(ctx context.Context, input ReverseEarnedInput) (*ReverseEarnedResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Coins <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coin amount must be positive")
	}
	if !input.SourceKind.IsValid() || input.SourceRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}

	var result ReverseEarnedResult
	err := s.run(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		balance, err := repo.LockBalance(ctx, input.UserID)
		if err != nil {
			return err
		}
		lot, err := repo.FindLotBySource(ctx, input.UserID, input.SourceKind, input.SourceRef)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "coin lot not found for reference")
			}
			return err
		}

		// Already-redeemed and already-expired coins stay gone; the clawback
		// caps at whatever the lot still holds and never pushes below zero.
		claw := input.Coins
		if remainder := lot.Available(); claw > remainder {
			claw = remainder
		}
		result = ReverseEarnedResult{Requested: input.Coins, Reversed: claw, Balance: balance.TotalCoins}
		if claw == 0 {
			return nil
		}

		if ok, err := repo.ReduceLotTotal(ctx, lot.ID, claw); err != nil {
			return err
		} else if !ok {
			return pkgerrors.New(pkgerrors.CodeConcurrency, "lot changed during reversal")
		}
		if ok, err := repo.AdjustBalance(ctx, input.UserID, -claw); err != nil {
			return err
		} else if !ok {
			return pkgerrors.New(pkgerrors.CodeInternal, "balance debit rejected")
		}

		txn := models.CoinTransaction{
			ID:      uuid.New(),
			UserID:  input.UserID,
			Kind:    enums.CoinTxnKindReversal,
			Coins:   claw,
			RefKind: input.SourceKind,
			RefID:   input.SourceRef,
		}
		if err := repo.CreateTransaction(ctx, &txn); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCoinsReversed,
			AggregateType: enums.AggregateCoinLot,
			AggregateID:   lot.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.CoinsReversedEvent{
				UserID:  input.UserID,
				Coins:   claw,
				RefKind: string(input.SourceKind),
				RefID:   input.SourceRef,
			},
		}); err != nil {
			return err
		}

		result.Balance = balance.TotalCoins - claw
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddReversed(result.Reversed)
	s.logOp(ctx, "earned coins reversed", input.UserID, map[string]any{
		"requested": result.Requested,
		"reversed":  result.Reversed,
		"ref_id":    input.SourceRef,
	})
	return &result, nil
}

func (s *service) Redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Coins <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "redemption amount must be positive")
	}
	if input.RefID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}

	var result RedeemResult
	err := s.run(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		balance, err := repo.LockBalance(ctx, input.UserID)
		if err != nil {
			return err
		}
		if input.Coins > balance.TotalCoins {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "redemption exceeds coin balance").
				WithDetails(map[string]any{
					"requested": input.Coins,
					"balance":   balance.TotalCoins,
				})
		}
		lots, err := repo.ListRedeemableLotsForUpdate(ctx, input.UserID, now)
		if err != nil {
			return err
		}
		allocations, err := PlanRedemption(lots, now, input.Coins)
		if err != nil {
			return err
		}
		for _, allocation := range allocations {
			ok, err := repo.ConsumeLot(ctx, allocation.LotID, allocation.Coins)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeAllocationFailed, "lot drained during redemption")
			}
		}
		if ok, err := repo.AdjustBalance(ctx, input.UserID, -input.Coins); err != nil {
			return err
		} else if !ok {
			return pkgerrors.New(pkgerrors.CodeAllocationFailed, "balance changed during redemption")
		}

		txn := models.CoinTransaction{
			ID:      uuid.New(),
			UserID:  input.UserID,
			Kind:    enums.CoinTxnKindRedeem,
			Coins:   input.Coins,
			RefKind: enums.CoinRefKindWallet,
			RefID:   input.RefID,
		}
		if err := repo.CreateTransaction(ctx, &txn); err != nil {
			return err
		}

		eventLots := make([]payloads.RedeemedAllocation, 0, len(allocations))
		for _, allocation := range allocations {
			eventLots = append(eventLots, payloads.RedeemedAllocation{
				LotID: allocation.LotID,
				Coins: allocation.Coins,
			})
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCoinsRedeemed,
			AggregateType: enums.AggregateCoinTransaction,
			AggregateID:   txn.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.CoinsRedeemedEvent{
				UserID: input.UserID,
				Coins:  input.Coins,
				RefID:  input.RefID,
				Lots:   eventLots,
			},
		}); err != nil {
			return err
		}

		result = RedeemResult{
			TransactionID: txn.ID,
			Coins:         input.Coins,
			Allocations:   allocations,
			Balance:       balance.TotalCoins - input.Coins,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddRedeemed(result.Coins)
	s.logOp(ctx, "coins redeemed", input.UserID, map[string]any{
		"transaction_id": result.TransactionID.String(),
		"coins":          result.Coins,
		"lots":           len(result.Allocations),
	})

	// Wallet credit happens after commit so a wallet outage never rolls back
	// the ledger. The redemption stands either way; a failed credit surfaces
	// as a dependency error for the caller to retry against the wallet.
	if err := s.wallet.Credit(ctx, input.UserID, input.Coins); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "wallet credit failed after redemption", err)
		}
		return &result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "wallet credit failed")
	}
	return &result, nil
}

func (s *service) SweepExpired(ctx context.Context) (*SweepResult, error) {
	batch := s.cfg.SweepBatch
	if batch <= 0 {
		batch = 100
	}

	summary := SweepResult{}
	var errs []error
	for {
		lots, err := s.repo.ListExpirableLots(ctx, s.now(), batch)
		if err != nil {
			return nil, err
		}
		if len(lots) == 0 {
			break
		}
		for _, lot := range lots {
			expired, err := s.expireLot(ctx, lot)
			if err != nil {
				errs = append(errs, fmt.Errorf("lot %s: %w", lot.ID, err))
				continue
			}
			if expired > 0 {
				summary.LotsExpired++
				summary.CoinsExpired += expired
			}
		}
		// Failed lots would be re-fetched forever; leave them for the
		// next scheduled sweep.
		if len(lots) < batch || len(errs) > 0 {
			break
		}
	}

	s.metrics.AddExpired(summary.CoinsExpired)
	if summary.LotsExpired > 0 {
		s.logOp(ctx, "expired coins swept", uuid.Nil, map[string]any{
			"lots_expired":  summary.LotsExpired,
			"coins_expired": summary.CoinsExpired,
		})
	}
	if len(errs) > 0 {
		return &summary, multierr.Combine(errs...)
	}
	return &summary, nil
}

// expireLot forfeits one lot's remainder in its own transaction so a crash
// mid-sweep leaves every processed lot fully settled. Re-running the sweep
// over an already-settled lot is a no-op.
func (s *service) expireLot(ctx context.Context, candidate models.CoinLot) (int, error) {
	expired := 0
	err := s.run(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		if _, err := repo.LockBalance(ctx, candidate.UserID); err != nil {
			return err
		}
		lot, err := repo.FindLotForUpdate(ctx, candidate.ID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return err
		}
		remainder := lot.Available()
		if remainder == 0 || lot.ExpiresAt.After(now) {
			return nil
		}

		if ok, err := repo.ExpireLotRemainder(ctx, lot.ID, remainder); err != nil {
			return err
		} else if !ok {
			return pkgerrors.New(pkgerrors.CodeConcurrency, "lot changed during expiry")
		}
		if ok, err := repo.AdjustBalance(ctx, lot.UserID, -remainder); err != nil {
			return err
		} else if !ok {
			return pkgerrors.New(pkgerrors.CodeInternal, "balance debit rejected")
		}

		txn := models.CoinTransaction{
			ID:      uuid.New(),
			UserID:  lot.UserID,
			Kind:    enums.CoinTxnKindExpire,
			Coins:   remainder,
			RefKind: enums.CoinRefKindLot,
			RefID:   lot.ID.String(),
		}
		if err := repo.CreateTransaction(ctx, &txn); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCoinsExpired,
			AggregateType: enums.AggregateCoinLot,
			AggregateID:   lot.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.CoinsExpiredEvent{
				UserID:    lot.UserID,
				LotID:     lot.ID,
				Coins:     remainder,
				ExpiresAt: lot.ExpiresAt,
			},
		}); err != nil {
			return err
		}

		expired = remainder
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	balance, err := s.repo.FindBalance(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return &BalanceResult{UserID: userID, TotalCoins: 0}, nil
		}
		return nil, err
	}
	return &BalanceResult{UserID: userID, TotalCoins: balance.TotalCoins}, nil
}

func (s *service) RedeemableBalance(ctx context.Context, userID uuid.UUID) (*RedeemableResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	total, err := s.repo.SumRedeemable(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	return &RedeemableResult{UserID: userID, RedeemableCoins: total}, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	params = params.Normalize()
	txns, total, err := s.repo.ListTransactions(ctx, userID, params)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(txns))
	for _, txn := range txns {
		entries = append(entries, HistoryEntry{
			ID:        txn.ID,
			Kind:      txn.Kind,
			Coins:     txn.Coins,
			RefKind:   txn.RefKind,
			RefID:     txn.RefID,
			CreatedAt: txn.CreatedAt,
		})
	}
	return &HistoryResult{Entries: entries, Meta: pagination.MetaFor(params, total)}, nil
}

// run wraps the transaction runner, translating lock contention and
// serialization aborts into the retryable concurrency code.
func (s *service) run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.tx.WithTx(ctx, fn)
	if err != nil && pkgerrors.IsLockContention(err) {
		s.metrics.IncConflict()
		return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, "ledger transaction contended")
	}
	return err
}

func (s *service) logOp(ctx context.Context, msg string, userID uuid.UUID, fields map[string]any) {
	if s.logg == nil {
		return
	}
	if userID != uuid.Nil {
		ctx = s.logg.WithUserID(ctx, userID.String())
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}

func validateRef(ref PendingRef) error {
	if ref.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !ref.RefKind.IsValid() || ref.RefID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}
	return nil
}

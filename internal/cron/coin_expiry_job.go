package cron

import (
	"context"
	"fmt"

	"github.com/veloramarket/velora-backend/internal/coins"
	"github.com/veloramarket/velora-backend/pkg/logger"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CoinSweeper runs one expiry pass over lapsed coin lots.
type CoinSweeper interface {
	SweepExpired(ctx context.Context) (*coins.SweepResult, error)
}

type CoinExpiryJobParams struct {
	Logger  *logger.Logger
	Sweeper CoinSweeper
}

func NewCoinExpiryJob(params CoinExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("coin sweeper required")
	}
	return &coinExpiryJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
	}, nil
}

type coinExpiryJob struct {
	logg    *logger.Logger
	sweeper CoinSweeper
}

func (j *coinExpiryJob) Name() string { return "coin-expiry" }

func (j *coinExpiryJob) Run(ctx context.Context) error {
	result, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("coin expiry sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"lots_expired":  result.LotsExpired,
		"coins_expired": result.CoinsExpired,
	})
	j.logg.Info(logCtx, "coin expiry sweep complete")
	return nil
}

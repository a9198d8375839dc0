package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/veloramarket/velora-backend/internal/coins"
	"github.com/veloramarket/velora-backend/pkg/logger"
)

type fakeCoinSweeper struct {
	result *coins.SweepResult
	err    error
	called int
}

func (f *fakeCoinSweeper) SweepExpired(ctx context.Context) (*coins.SweepResult, error) {
	f.called++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestCoinExpiryJobRunsSweep(t *testing.T) {
	sweeper := &fakeCoinSweeper{result: &coins.SweepResult{LotsExpired: 3, CoinsExpired: 75}}
	job, err := NewCoinExpiryJob(CoinExpiryJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: sweeper,
	})
	if err != nil {
		t.Fatalf("NewCoinExpiryJob: %v", err)
	}

	if got := job.Name(); got != "coin-expiry" {
		t.Fatalf("unexpected job name %q", got)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.called != 1 {
		t.Fatalf("expected sweep called once, got %d", sweeper.called)
	}
}

func TestCoinExpiryJobPropagatesError(t *testing.T) {
	sweeper := &fakeCoinSweeper{err: errors.New("db down")}
	job, err := NewCoinExpiryJob(CoinExpiryJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Sweeper: sweeper,
	})
	if err != nil {
		t.Fatalf("NewCoinExpiryJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCoinExpiryJobValidation(t *testing.T) {
	if _, err := NewCoinExpiryJob(CoinExpiryJobParams{Sweeper: &fakeCoinSweeper{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewCoinExpiryJob(CoinExpiryJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})}); err == nil {
		t.Fatal("expected sweeper error")
	}
}

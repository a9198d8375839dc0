package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veloramarket/velora-backend/api/routes"
	"github.com/veloramarket/velora-backend/internal/coins"
	"github.com/veloramarket/velora-backend/pkg/config"
	"github.com/veloramarket/velora-backend/pkg/db"
	"github.com/veloramarket/velora-backend/pkg/logger"
	"github.com/veloramarket/velora-backend/pkg/metrics"
	"github.com/veloramarket/velora-backend/pkg/migrate"
	"github.com/veloramarket/velora-backend/pkg/outbox"
	"github.com/veloramarket/velora-backend/pkg/redis"
	"github.com/veloramarket/velora-backend/pkg/wallet"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	walletClient, err := wallet.NewClient(cfg.Wallet, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet client", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	coinsService, err := coins.NewService(
		coins.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		walletClient,
		ledgerMetrics,
		cfg.Coins,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create coins service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, coinsService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

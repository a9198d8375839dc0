package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veloramarket/velora-backend/api/controllers"
	"github.com/veloramarket/velora-backend/api/middleware"
	"github.com/veloramarket/velora-backend/internal/coins"
	"github.com/veloramarket/velora-backend/pkg/config"
	"github.com/veloramarket/velora-backend/pkg/db"
	"github.com/veloramarket/velora-backend/pkg/logger"
	"github.com/veloramarket/velora-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	coinsService coins.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/coins", func(r chi.Router) {
		r.Route("/pending", func(r chi.Router) {
			r.Post("/", controllers.CoinsCreatePending(coinsService, logg))
			r.Post("/complete", controllers.CoinsCompletePending(coinsService, logg))
			r.Post("/cancel", controllers.CoinsCancelPending(coinsService, logg))
			r.Post("/reverse", controllers.CoinsReversePending(coinsService, logg))
		})
		r.Post("/reversals", controllers.CoinsReverseEarned(coinsService, logg))
		r.Post("/redeem", controllers.CoinsRedeem(coinsService, logg))

		r.Route("/{userId}", func(r chi.Router) {
			r.Get("/balance", controllers.CoinsBalance(coinsService, logg))
			r.Get("/balance/redeemable", controllers.CoinsRedeemableBalance(coinsService, logg))
			r.Get("/history", controllers.CoinsHistory(coinsService, logg))
		})
	})

	return r
}

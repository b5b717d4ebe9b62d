package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/groupbuy-settlement/api/controllers"
	"github.com/angelmondragon/groupbuy-settlement/api/middleware"
	"github.com/angelmondragon/groupbuy-settlement/pkg/config"
	"github.com/angelmondragon/groupbuy-settlement/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	gatherer prometheus.Gatherer,
	idem middleware.IdempotencyStore,
	dealStore controllers.DealStore,
	settler controllers.Settler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisP,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	replayable := middleware.Idempotency(idem, logg)

	r.Route("/api/v1/deals", func(r chi.Router) {
		r.With(replayable).Post("/", controllers.CreateDeal(dealStore, logg))
		r.Route("/{dealID}", func(r chi.Router) {
			r.Get("/", controllers.GetDeal(dealStore, logg))
			r.With(replayable).Post("/pledges", controllers.CreatePledge(dealStore, logg))
			r.Post("/settle", controllers.SettleDeal(settler, logg))
			r.Post("/settlement/resume", controllers.ResumeSettlement(settler, logg))
		})
	})

	return r
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/groupbuy-settlement/api/routes"
	"github.com/angelmondragon/groupbuy-settlement/internal/deals"
	"github.com/angelmondragon/groupbuy-settlement/internal/issuers"
	"github.com/angelmondragon/groupbuy-settlement/internal/settlement"
	"github.com/angelmondragon/groupbuy-settlement/pkg/config"
	"github.com/angelmondragon/groupbuy-settlement/pkg/db"
	"github.com/angelmondragon/groupbuy-settlement/pkg/logger"
	"github.com/angelmondragon/groupbuy-settlement/pkg/metrics"
	"github.com/angelmondragon/groupbuy-settlement/pkg/migrate"
	"github.com/angelmondragon/groupbuy-settlement/pkg/otel"
	"github.com/angelmondragon/groupbuy-settlement/pkg/outbox"
	"github.com/angelmondragon/groupbuy-settlement/pkg/redis"
	"github.com/angelmondragon/groupbuy-settlement/pkg/square"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	shutdownTracing, err := otel.Setup(bootCtx, cfg.OTel, "groupbuy-api")
	if err != nil {
		return err
	}

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return multierr.Append(err, dbClient.Close())
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Combine(err,
			shutdownTracing(ctx),
			redisClient.Close(),
			dbClient.Close(),
		)
	}()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	squareClient, err := square.NewClient(bootCtx, cfg.Square, logg)
	if err != nil {
		return err
	}

	dealRepo, err := deals.NewRepository(dbClient, outbox.NewService(outbox.NewRepository(dbClient.DB()), logg))
	if err != nil {
		return err
	}
	claimer, err := settlement.NewRedisClaimer(redisClient, cfg.Settlement.ClaimTTL)
	if err != nil {
		return err
	}
	orders, err := issuers.NewOrderIssuer(dbClient.DB())
	if err != nil {
		return err
	}
	payments, err := issuers.NewSquareAuthorizer(dbClient.DB(), squareClient)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	settler, err := settlement.NewService(settlement.ServiceParams{
		Store:         dealRepo,
		Orders:        orders,
		Payments:      payments,
		Ledger:        deals.NewLedger(dbClient.DB()),
		Claimer:       claimer,
		Logger:        logg,
		Metrics:       metrics.NewSettlementMetrics(registry),
		Concurrency:   cfg.Settlement.Concurrency,
		IssuerTimeout: cfg.Settlement.IssuerTimeout,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, redisClient, dealRepo, settler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	postgresRepo "github.com/finbooks/accounting/internal/adapter/repository/postgres"
	redisRepo "github.com/finbooks/accounting/internal/adapter/repository/redis"
	"github.com/finbooks/accounting/internal/infrastructure/config"
	"github.com/finbooks/accounting/internal/infrastructure/logger"
	"github.com/finbooks/accounting/internal/infrastructure/metrics"
	"github.com/finbooks/accounting/internal/infrastructure/postgres"
	"github.com/finbooks/accounting/internal/infrastructure/redis"
	"github.com/finbooks/accounting/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	m := metrics.New()

	accountRepo := postgresRepo.NewAccountRepository(pool)
	journalRepo := postgresRepo.NewJournalRepository(pool)
	cache := redisRepo.NewCache(redisClient)

	balanceUC := usecase.NewBalanceUseCase(accountRepo, journalRepo, cache, log, m,
		usecase.WithBalanceTTL(cfg.AccountBalanceTTL),
		usecase.WithSummaryTTL(cfg.BalanceSummaryTTL))
	calcUC := usecase.NewCalculationUseCase()
	memoizerUC := usecase.NewMemoizerUseCase(calcUC, log, m,
		usecase.WithMemoTTL(cfg.MemoizerTTL),
		usecase.WithMemoSweepInterval(cfg.MemoizerSweepInterval))

	memoizerUC.Start()
	defer memoizerUC.Stop()

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go refreshBalances(refreshCtx, balanceUC, cfg.BalanceRefreshInterval, log)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.OpsPort),
		Handler:      router,
		ReadTimeout:  cfg.OpsReadTimeout,
		WriteTimeout: cfg.OpsWriteTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.OpsPort).Msg("starting ops listener")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ops listener failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.OpsShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("ops listener forced to shutdown")
	}

	log.Info().Msg("stopped")
}

// refreshBalances rewrites the cached balances on a fixed interval so cached
// reads stay warm even when no entries are flowing.
func refreshBalances(ctx context.Context, balances *usecase.BalanceUseCase, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := balances.RefreshBalanceCache(ctx); err != nil {
				log.Warn().Err(err).Msg("balance cache refresh failed")
			}
		}
	}
}

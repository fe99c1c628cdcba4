package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/rental-bookings/pkg/cache"
	"github.com/diagnosis/rental-bookings/pkg/config"
	"github.com/diagnosis/rental-bookings/pkg/database"
	"github.com/diagnosis/rental-bookings/pkg/events"
	"github.com/diagnosis/rental-bookings/pkg/logger"
	mw "github.com/diagnosis/rental-bookings/pkg/middleware"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/handlers"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/repository"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/service"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Bookings service error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	// Re-read LOG_LEVEL now that .env has been applied.
	logger.SetDefault(logger.New(os.Stdout, os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := cache.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	store := cache.NewStore(rdb)

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		return err
	}
	defer eventBus.Close()

	// Repositories
	bookingRepo := repository.NewBookingRepository(pool)
	propertyRepo := repository.NewCachedPropertyRepository(
		repository.NewPropertyRepository(pool), store, cfg.Lifecycle.PropertyCacheTTL,
	)
	pendingRepo := repository.NewPendingRepository(store)

	// Services
	bookingService := service.NewBookingService(bookingRepo, propertyRepo, pendingRepo, eventBus, cfg)
	ledgerService := service.NewLedgerService(bookingRepo, propertyRepo, pendingRepo, eventBus)

	if err := ledgerService.Subscribe(eventBus, cfg.NATS.QueueGroup); err != nil {
		return err
	}

	h := handlers.New(bookingService, cfg)
	actionLimiter := mw.NewRateLimiter(store, mw.RateLimitConfig{
		Requests: cfg.Lifecycle.ActionRateLimit,
		Window:   cfg.Lifecycle.ActionRateWindow,
		KeyFunc:  mw.WalletKeyFunc,
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings"))
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replayed"},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	r.Mount("/v1", h.Routes(actionLimiter.Middleware(), mw.IdempotencyMiddleware(store)))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting bookings service",
			"port", cfg.Server.Port,
			"chain_id", cfg.Chain.ChainID,
			"network", cfg.Chain.Network,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down bookings service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Bookings service shutdown error", "error", err)
		}
		if err := eventBus.Drain(); err != nil {
			logger.Warn("NATS drain error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

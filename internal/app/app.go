package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tripmarket-pricing/internal/domain/checkout"
	"github.com/xenking/tripmarket-pricing/internal/domain/settlement"
	"github.com/xenking/tripmarket-pricing/internal/handler"
	"github.com/xenking/tripmarket-pricing/internal/issuance"
	"github.com/xenking/tripmarket-pricing/internal/repository"
	"github.com/xenking/tripmarket-pricing/pkg/health"
	"github.com/xenking/tripmarket-pricing/pkg/httpmiddleware"
)

const serviceName = "pricing-api"

// Run creates all dependencies, starts the HTTP server and shuts it down
// gracefully once ctx is cancelled.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Add(health.Readiness, "postgres_pool", time.Second,
		health.PoolSaturationCheck(health.PgxPoolStat(pool), 0.95),
		health.WithThresholds(3, 2),
	)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	coupons := repository.NewCouponRepository(pool)
	usages := repository.NewUsageRepository(pool)
	partners := repository.NewPartnerRepository(pool)
	transactions := repository.NewTransactionRepository(pool)

	checkoutSvc := checkout.NewService(coupons, usages,
		checkout.WithMeterProvider(m.MeterProvider()),
		checkout.WithTracerProvider(m.TracerProvider()),
	)
	settlementSvc := settlement.NewService(partners, transactions,
		settlement.WithMeterProvider(m.MeterProvider()),
		settlement.WithTracerProvider(m.TracerProvider()),
	)

	issuer := issuance.New(coupons, nil, cfg.Coupons.Issuance())
	if err := issuer.Load(ctx); err != nil {
		return errors.Wrap(err, "load coupon codes")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(checkoutSvc, settlementSvc, issuer).Register(mux)

	middlewares := []httpmiddleware.Middleware{
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument(serviceName, m),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
		httpmiddleware.Recovery(),
	}
	if limiter := cfg.RateLimit.Limiter(); limiter != nil {
		go limiter.Run(ctx)
		middlewares = append(middlewares, limiter.Middleware())
	}
	middlewares = append(middlewares, httpmiddleware.Labeler())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           httpmiddleware.Wrap(mux, middlewares...),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()

		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

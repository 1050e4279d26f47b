// Package app wires the service desk together: configuration, database,
// domain services, HTTP handlers, middleware, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/optiontech/servicedesk/internal/domain/auth"
	"github.com/optiontech/servicedesk/internal/domain/customer"
	"github.com/optiontech/servicedesk/internal/domain/loyalty"
	"github.com/optiontech/servicedesk/internal/domain/order"
	"github.com/optiontech/servicedesk/internal/handler"
	"github.com/optiontech/servicedesk/internal/notify"
	"github.com/optiontech/servicedesk/internal/repository"
	"github.com/optiontech/servicedesk/pkg/health"
	"github.com/optiontech/servicedesk/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	earnRate, err := cfg.Loyalty.ParsedEarnRate()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.DatabasePingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	customerRepo := repository.NewCustomerRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	ledgerRepo := repository.NewLedgerRepository(pool)
	rewardRepo := repository.NewRewardRepository(pool)
	promoRepo := repository.NewPromoRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Notification dispatcher drains on a background goroutine until shutdown.
	dispatcher := notify.NewDispatcher(lg.Named("notify"), cfg.Notify.Buffer)
	dispatcher.Start(ctx)

	// Domain services.
	registrar := customer.NewRegistrar(customerRepo)
	ledger := loyalty.NewLedger(ledgerRepo, dispatcher)
	redeemer := loyalty.NewRedeemer(rewardRepo)
	promos := loyalty.NewPromoClaimer(promoRepo, dispatcher)
	workflow := order.NewWorkflow(orderRepo, customerRepo, catalogRepo, ledger, dispatcher, earnRate)

	// HTTP handlers.
	h := handler.NewHandler(registrar, customerRepo, catalogRepo, ledger, redeemer, promos, workflow)
	pepper := []byte(cfg.APIKeyPepper)
	ordersAuth := handler.RequireAPIKey(apikeyRepo, pepper, auth.ScopeOrders)
	ledgerAuth := handler.RequireAPIKey(apikeyRepo, pepper, auth.ScopeLedger)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux, ordersAuth, ledgerAuth)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		// RequestID and InjectLogger run first so Recovery logs panics with
		// the request ID and the real logger.
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:       cfg.RateLimit.Max,
				Window:    cfg.RateLimit.Window,
				SkipPaths: []string{"/livez", "/readyz"},
			}),
			httpmiddleware.Instrument("servicedesk-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
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
		dispatcher.Wait()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

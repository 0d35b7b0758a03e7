package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/chauffeur-booking/internal/api/router"
	"github.com/wolfman30/chauffeur-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/chauffeur-booking/internal/config"
	"github.com/wolfman30/chauffeur-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/chauffeur-booking/internal/http/middleware"
	"github.com/wolfman30/chauffeur-booking/internal/observability/metrics"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chauffeur booking web server",
		"env", cfg.Env,
		"port", cfg.Port,
		"backend", cfg.BackendAPIURL,
		"public_base_url", cfg.PublicBaseURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := setupApp(ctx, cfg, logger)
	defer app.close()

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     app.handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset so the session events socket can live on.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type app struct {
	handler http.Handler
	close   func()
}

// setupApp wires every component. Background sweepers stop when ctx ends.
func setupApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *app {
	metricsHandler, m := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	local := bootstrap.BuildLocalStorage(redisClient, logger)
	gw := bootstrap.BuildGateway(cfg, m, logger)
	placesSvc := bootstrap.BuildPlaces(cfg, logger)
	auth, claims, sessionKey := bootstrap.BuildAuth(cfg, logger)
	confirmer := bootstrap.BuildConfirmer(cfg, logger)

	workspaces := handlers.NewWorkspaces(cfg.VisitorIdleTTL, handlers.WorkspaceDeps{
		Storage:     local,
		Gateway:     gw,
		Places:      placesSvc,
		Auth:        auth,
		Claims:      claims,
		SessionKey:  sessionKey,
		Confirmer:   confirmer,
		Metrics:     m,
		Logger:      logger,
		Debounce:    cfg.DraftSaveDebounce,
		RequireAuth: cfg.RequireAuthForBooking,
	})
	go workspaces.Run(ctx, cfg.VisitorSweepInterval)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	handler := router.New(&router.Config{
		Logger: logger,
		Health: handlers.NewHealthHandler(gw, logger.Component("health")),
		PublicConfig: handlers.NewConfigHandler(handlers.PublicConfig{
			StripePublishableKey:  cfg.StripePublishableKey,
			RequireAuthForBooking: cfg.RequireAuthForBooking,
		}, placesSvc),
		Pricing:            handlers.NewPricingHandler(gw),
		Places:             handlers.NewPlacesHandler(placesSvc),
		Session:            handlers.NewSessionHandler(workspaces, logger.Component("session")),
		Booking:            handlers.NewBookingHandler(workspaces, placesSvc, logger.Component("booking")),
		Payments:           handlers.NewPaymentsHandler(workspaces, logger.Component("payments")),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: allowedOrigins(cfg),
		RateLimiter:        limiter,
		SecureCookies:      cfg.Env != "development",
	})

	return &app{
		handler: handler,
		close: func() {
			workspaces.Close()
			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close failed", "error", err)
				}
			}
		},
	}
}

func setupMetrics() (http.Handler, *metrics.WorkflowMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWorkflowMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// allowedOrigins adds the page host named by PUBLIC_BASE_URL to the
// configured CORS origins.
func allowedOrigins(cfg *appconfig.Config) []string {
	origins := append([]string(nil), cfg.CORSAllowedOrigins...)
	u, err := url.Parse(cfg.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return origins
	}
	own := u.Scheme + "://" + u.Host
	for _, o := range origins {
		if o == own {
			return origins
		}
	}
	return append(origins, own)
}

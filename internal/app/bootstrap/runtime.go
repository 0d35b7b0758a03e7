package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/chauffeur-booking/internal/config"
	"github.com/wolfman30/chauffeur-booking/internal/gateway"
	"github.com/wolfman30/chauffeur-booking/internal/observability/metrics"
	"github.com/wolfman30/chauffeur-booking/internal/payments"
	"github.com/wolfman30/chauffeur-booking/internal/places"
	"github.com/wolfman30/chauffeur-booking/internal/session"
	"github.com/wolfman30/chauffeur-booking/internal/storage"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

// slotTTL bounds how long an abandoned visitor's slots stay in redis.
const slotTTL = 30 * 24 * time.Hour

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildLocalStorage keeps visitor slots in redis when a client is
// available and in process memory otherwise.
func BuildLocalStorage(redisClient *redis.Client, logger *logging.Logger) storage.Backend {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Info("visitor storage: in-memory")
		return storage.NewMemoryBackend()
	}
	logger.Info("visitor storage: redis")
	return storage.NewRedisBackend(redisClient, slotTTL)
}

// BuildGateway returns the booking API client shared by every visitor.
func BuildGateway(cfg *appconfig.Config, m *metrics.WorkflowMetrics, logger *logging.Logger) *gateway.Client {
	if logger == nil {
		logger = logging.Default()
	}
	return gateway.New(cfg.BackendAPIURL,
		gateway.WithLogger(logger.Component("gateway")),
		gateway.WithMetrics(m),
		gateway.WithHealthTimeout(cfg.HealthCheckTimeout),
	)
}

// BuildPlaces returns the address service. Without a key the service
// still answers, in its degraded state.
func BuildPlaces(cfg *appconfig.Config, logger *logging.Logger) *places.Service {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.GoogleMapsAPIKey) == "" {
		logger.Warn("GOOGLE_MAPS_API_KEY not set; address suggestions disabled")
	}
	plogger := logger.Component("places")
	return places.NewService(places.NewLoader(cfg.GoogleMapsAPIKey, cfg.GoogleMapsBaseURL, plogger), plogger)
}

// BuildAuth returns the hosted auth client, the claims parser and the
// storage key sessions persist under.
func BuildAuth(cfg *appconfig.Config, logger *logging.Logger) (*session.AuthClient, *session.ClaimsParser, string) {
	if logger == nil {
		logger = logging.Default()
	}
	claims := session.NewClaimsParser(cfg.SupabaseJWTSecret)
	if !claims.Verifies() {
		logger.Warn("SUPABASE_JWT_SECRET not set; access token signatures are not verified")
	}
	return session.NewAuthClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, logger.Component("auth")),
		claims,
		session.StorageKey(cfg.SupabaseURL)
}

// BuildConfirmer returns the card confirmer for the payment page.
func BuildConfirmer(cfg *appconfig.Config, logger *logging.Logger) *payments.StripeConfirmer {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.StripeDryRun {
		logger.Warn("STRIPE_DRY_RUN enabled; cards are not charged")
	} else if strings.TrimSpace(cfg.StripePublishableKey) == "" {
		logger.Warn("STRIPE_PUBLISHABLE_KEY not set; card confirmation will fail")
	}
	return payments.NewStripeConfirmer(cfg.StripePublishableKey, logger.Component("stripe")).
		WithBaseURL(cfg.StripeAPIBaseURL).
		WithDryRun(cfg.StripeDryRun)
}

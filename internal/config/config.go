package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Remote booking/pricing/payment API
	BackendAPIURL      string
	HealthCheckTimeout time.Duration

	// Payment SDK (publishable side only)
	StripePublishableKey string
	StripeAPIBaseURL     string
	StripeDryRun         bool

	// Hosted auth
	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	// Mapping service
	GoogleMapsAPIKey  string
	GoogleMapsBaseURL string

	// Local storage backend; empty RedisAddr keeps slots in memory
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	DraftSaveDebounce     time.Duration
	RequireAuthForBooking bool
	VisitorIdleTTL        time.Duration
	VisitorSweepInterval  time.Duration

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		BackendAPIURL:      strings.TrimRight(getEnv("BACKEND_API_URL", "http://localhost:3001/api"), "/"),
		HealthCheckTimeout: getEnvAsDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),

		StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
		StripeAPIBaseURL:     getEnv("STRIPE_API_BASE_URL", "https://api.stripe.com"),
		StripeDryRun:         getEnvAsBool("STRIPE_DRY_RUN", false),

		SupabaseURL:       strings.TrimRight(getEnv("SUPABASE_URL", "https://localhost.supabase.co"), "/"),
		SupabaseAnonKey:   getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseJWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),

		GoogleMapsAPIKey:  getEnv("GOOGLE_MAPS_API_KEY", ""),
		GoogleMapsBaseURL: getEnv("GOOGLE_MAPS_BASE_URL", "https://maps.googleapis.com"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		DraftSaveDebounce:     getEnvAsDuration("DRAFT_SAVE_DEBOUNCE", 500*time.Millisecond),
		RequireAuthForBooking: getEnvAsBool("REQUIRE_AUTH_FOR_BOOKING", true),
		VisitorIdleTTL:        getEnvAsDuration("VISITOR_IDLE_TTL", 30*time.Minute),
		VisitorSweepInterval:  getEnvAsDuration("VISITOR_SWEEP_INTERVAL", time.Minute),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

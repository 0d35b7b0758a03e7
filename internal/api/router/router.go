package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/chauffeur-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/chauffeur-booking/internal/http/middleware"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Health             *handlers.HealthHandler
	PublicConfig       *handlers.ConfigHandler
	Pricing            *handlers.PricingHandler
	Places             *handlers.PlacesHandler
	Session            *handlers.SessionHandler
	Booking            *handlers.BookingHandler
	Payments           *handlers.PaymentsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter

	// SecureCookies marks the visitor cookie Secure; set outside development.
	SecureCookies bool
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints, no visitor state
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.Health.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Group(func(api chi.Router) {
			api.Use(middleware.Compress(5))
			api.Get("/api/config", cfg.PublicConfig.Config)
			api.Get("/api/pricing", cfg.Pricing.Pricing)
			api.Get("/api/pricing/estimate", cfg.Pricing.Estimate)
			api.Get("/api/places/autocomplete", cfg.Places.Autocomplete)
			api.Get("/api/places/status", cfg.Places.Status)
		})
	})

	// Visitor endpoints: every request carries the visitor cookie.
	r.Group(func(v chi.Router) {
		v.Use(httpmiddleware.Visitor(cfg.SecureCookies))
		if cfg.RateLimiter != nil {
			v.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}

		// The events socket hijacks the connection; keep it uncompressed.
		v.Get("/api/session/events", cfg.Session.Events)

		v.Group(func(api chi.Router) {
			api.Use(middleware.Compress(5))

			api.Get("/api/session", cfg.Session.Current)
			api.Post("/api/session/sign-in", cfg.Session.SignIn)
			api.Post("/api/session/sign-up", cfg.Session.SignUp)
			api.Post("/api/session/sign-out", cfg.Session.SignOut)

			api.Get("/api/booking/draft", cfg.Booking.Draft)
			api.Patch("/api/booking/draft", cfg.Booking.UpdateDraft)
			api.Delete("/api/booking/draft", cfg.Booking.ResetDraft)
			api.Post("/api/booking/draft/address", cfg.Booking.SelectAddress)
			api.Post("/api/booking/submit", cfg.Booking.Submit)
			api.Get("/api/bookings/{id}", cfg.Booking.Get)

			api.Post("/api/payments/intent", cfg.Payments.Intent)
			api.Get("/api/payments/view", cfg.Payments.View)
			api.Post("/api/payments/confirm", cfg.Payments.Confirm)
			api.Get("/api/payments/{id}/status", cfg.Payments.Status)
		})
	})

	return r
}

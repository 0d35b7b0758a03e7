package handlers

import (
	"net/http"

	"github.com/wolfman30/chauffeur-booking/internal/booking"
	"github.com/wolfman30/chauffeur-booking/internal/places"
)

// PublicConfig is the browser-safe configuration.
type PublicConfig struct {
	StripePublishableKey  string
	RequireAuthForBooking bool
}

// ConfigHandler serves what pages need to render forms.
type ConfigHandler struct {
	cfg    PublicConfig
	places *places.Service
}

func NewConfigHandler(cfg PublicConfig, placesSvc *places.Service) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, places: placesSvc}
}

type regionOptions struct {
	Location         booking.Location          `json:"location"`
	Vehicles         []booking.VehicleType     `json:"vehicles"`
	DefaultVehicle   booking.VehicleType       `json:"default_vehicle"`
	DeparturePoints  []booking.DeparturePoint  `json:"departure_points,omitempty"`
	DestinationTypes []booking.DestinationType `json:"destination_types,omitempty"`
	MaxGroupSize     int                       `json:"max_group_size,omitempty"`
}

type configResponse struct {
	StripePublishableKey  string                `json:"stripe_publishable_key"`
	RequireAuthForBooking bool                  `json:"require_auth_for_booking"`
	Places                places.Suggestions    `json:"places"`
	ServiceTypes          []booking.ServiceType `json:"service_types"`
	Regions               []regionOptions       `json:"regions"`
}

// Config is GET /api/config.
func (h *ConfigHandler) Config(w http.ResponseWriter, r *http.Request) {
	resp := configResponse{
		StripePublishableKey:  h.cfg.StripePublishableKey,
		RequireAuthForBooking: h.cfg.RequireAuthForBooking,
		ServiceTypes:          booking.ServiceTypes,
	}
	if h.places != nil {
		resp.Places = h.places.Status()
	} else {
		resp.Places = places.Suggestions{State: places.StateError, Suggestions: []places.Suggestion{}, Warning: places.DegradedWarning}
	}
	for _, loc := range booking.Locations {
		opts := regionOptions{
			Location:       loc,
			Vehicles:       booking.AllowedVehicles(loc),
			DefaultVehicle: booking.DefaultVehicle(loc),
		}
		if loc == booking.LocationLosCabos {
			opts.DeparturePoints = booking.DeparturePoints
			opts.DestinationTypes = booking.DestinationTypes
			opts.MaxGroupSize = booking.MaxGroupSize
		}
		resp.Regions = append(resp.Regions, opts)
	}
	writeJSON(w, http.StatusOK, resp)
}

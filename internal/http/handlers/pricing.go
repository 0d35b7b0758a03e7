package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/wolfman30/chauffeur-booking/internal/booking"
	"github.com/wolfman30/chauffeur-booking/internal/gateway"
	"github.com/wolfman30/chauffeur-booking/internal/money"
)

// PricingSource reads the backend rate card.
type PricingSource interface {
	GetPricing(ctx context.Context) (gateway.PricingTable, error)
}

// PricingHandler serves the rate card and display estimates.
type PricingHandler struct {
	pricing PricingSource
}

func NewPricingHandler(pricing PricingSource) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

// Pricing is GET /api/pricing.
func (h *PricingHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	table, err := h.pricing.GetPricing(r.Context())
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

type estimateResponse struct {
	VehicleType     string `json:"vehicle_type"`
	ServiceType     string `json:"service_type"`
	DurationMinutes int    `json:"duration_minutes"`
	AmountCents     int64  `json:"amount_cents"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
}

// Estimate is GET /api/pricing/estimate. The figure is for display; the
// created booking's price is authoritative.
func (h *PricingHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vehicle := q.Get("vehicle_type")
	service := q.Get("service_type")
	if service == "" {
		service = string(booking.ServiceAirportTransfer)
	}
	minutes := booking.DefaultDuration
	if raw := q.Get("duration"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
			return
		}
		minutes = n
	}

	table, err := h.pricing.GetPricing(r.Context())
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	cents, err := money.Estimate(table, vehicle, service, minutes)
	if errors.Is(err, money.ErrNoRates) {
		writeError(w, http.StatusNotFound, "no_rates", "No pricing is available for that vehicle.")
		return
	}
	currency := table.Currency
	if currency == "" {
		currency = money.DefaultCurrency
	}
	writeJSON(w, http.StatusOK, estimateResponse{
		VehicleType:     vehicle,
		ServiceType:     service,
		DurationMinutes: minutes,
		AmountCents:     cents,
		Amount:          money.FormatCents(cents, currency),
		Currency:        currency,
	})
}

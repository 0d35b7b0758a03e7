package money

import (
	"errors"

	"github.com/wolfman30/chauffeur-booking/internal/gateway"
)

// ErrNoRates is returned when the pricing table has no entry for a vehicle.
var ErrNoRates = errors.New("money: no rates for vehicle type")

// Estimate computes a display-only price from the rate card. The backend's
// estimated_price on the created booking is the amount actually charged.
//
// Airport transfers use the flat transfer rate; every other service is
// billed as base rate plus started hours, floored at the minimum charge.
func Estimate(table gateway.PricingTable, vehicleType, serviceType string, durationMinutes int) (int64, error) {
	rates, ok := table.Pricing[vehicleType]
	if !ok {
		return 0, ErrNoRates
	}
	if serviceType == "airport_transfer" && rates.AirportTransferRate > 0 {
		return max(rates.AirportTransferRate, rates.MinimumCharge), nil
	}
	if durationMinutes < 0 {
		durationMinutes = 0
	}
	hours := int64((durationMinutes + 59) / 60)
	if hours == 0 {
		hours = 1
	}
	total := rates.BaseRate + rates.PerHourRate*hours
	return max(total, rates.MinimumCharge), nil
}

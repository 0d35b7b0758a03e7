package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chauffeur-booking/internal/gateway"
)

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents    int64
		currency string
		want     string
	}{
		{7500, "USD", "$75.00"},
		{0, "", "$0.00"},
		{5, "usd", "$0.05"},
		{123456789, "USD", "$1,234,567.89"},
		{100000, "USD", "$1,000.00"},
		{-2550, "USD", "-$25.50"},
		{350000, "MXN", "MX$3,500.00"},
		{999, "EUR", "€9.99"},
		{4200, "CHF", "42.00 CHF"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCents(tt.cents, tt.currency))
	}
}

func TestEstimate(t *testing.T) {
	table := gateway.PricingTable{
		Currency: "USD",
		Pricing: map[string]gateway.VehicleRates{
			"escalade": {BaseRate: 5000, PerHourRate: 12500, AirportTransferRate: 17500, MinimumCharge: 25000},
			"sprinter": {BaseRate: 10000, PerHourRate: 20000, MinimumCharge: 30000},
		},
	}

	got, err := Estimate(table, "escalade", "airport_transfer", 45)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), got, "minimum charge floors the transfer rate")

	got, err = Estimate(table, "escalade", "hourly", 150)
	require.NoError(t, err)
	assert.Equal(t, int64(5000+3*12500), got)

	got, err = Estimate(table, "sprinter", "airport_transfer", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), got, "no transfer rate falls back to hourly with minimum")

	_, err = Estimate(table, "s_class", "hourly", 60)
	assert.ErrorIs(t, err, ErrNoRates)
}

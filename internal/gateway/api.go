package gateway

import (
	"context"
	"net/http"
)

// Health checks backend liveness, aborting after the configured timeout.
func (c *Client) Health(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	return Request[Health](ctx, c, "health", http.MethodGet, "/health", nil)
}

// GetPricing fetches the rate card.
func (c *Client) GetPricing(ctx context.Context) (PricingTable, error) {
	return Request[PricingTable](ctx, c, "get_pricing", http.MethodGet, "/pricing", nil)
}

// CreateBooking submits a validated booking.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (Booking, error) {
	return Request[Booking](ctx, c, "create_booking", http.MethodPost, "/bookings", req)
}

// GetBooking reads a booking by its opaque id.
func (c *Client) GetBooking(ctx context.Context, id string) (Booking, error) {
	return Request[Booking](ctx, c, "get_booking", http.MethodGet, "/bookings/"+pathEscape(id), nil)
}

// CreatePaymentIntent asks the backend for a payment intent for a booking.
func (c *Client) CreatePaymentIntent(ctx context.Context, bookingID string) (PaymentIntent, error) {
	return Request[PaymentIntent](ctx, c, "create_payment_intent", http.MethodPost, "/payments/create-intent",
		createIntentRequest{BookingID: bookingID})
}

// ConfirmPayment tells the backend a payment intent was confirmed client-side.
func (c *Client) ConfirmPayment(ctx context.Context, paymentIntentID string) (PaymentStatus, error) {
	return Request[PaymentStatus](ctx, c, "confirm_payment", http.MethodPost, "/payments/confirm",
		confirmPaymentRequest{PaymentIntentID: paymentIntentID})
}

// GetPaymentStatus reads the backend's view of a payment intent.
func (c *Client) GetPaymentStatus(ctx context.Context, paymentIntentID string) (PaymentStatus, error) {
	return Request[PaymentStatus](ctx, c, "get_payment_status", http.MethodGet,
		"/payments/"+pathEscape(paymentIntentID)+"/status", nil)
}

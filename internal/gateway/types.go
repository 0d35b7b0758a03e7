package gateway

// Health is the backend's liveness response.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// VehicleRates holds one vehicle's rates in minor currency units.
type VehicleRates struct {
	BaseRate            int64 `json:"base_rate"`
	PerHourRate         int64 `json:"per_hour_rate"`
	AirportTransferRate int64 `json:"airport_transfer_rate"`
	MinimumCharge       int64 `json:"minimum_charge"`
}

// PricingTable is the backend's rate card keyed by vehicle type.
type PricingTable struct {
	Pricing  map[string]VehicleRates `json:"pricing"`
	Currency string                  `json:"currency"`
}

// CreateBookingRequest is the wire shape the booking form submits.
type CreateBookingRequest struct {
	Location          string `json:"location"`
	PickupLocation    string `json:"pickup_location"`
	DropoffLocation   string `json:"dropoff_location"`
	PickupDatetime    string `json:"pickup_datetime"`
	VehicleType       string `json:"vehicle_type"`
	ServiceType       string `json:"service_type"`
	CustomerName      string `json:"customer_name"`
	CustomerEmail     string `json:"customer_email"`
	CustomerPhone     string `json:"customer_phone"`
	EstimatedDuration int    `json:"estimated_duration"`
	SpecialRequests   string `json:"special_requests,omitempty"`

	DeparturePoint  string `json:"departure_point,omitempty"`
	DestinationType string `json:"destination_type,omitempty"`
	GroupSize       int    `json:"group_size,omitempty"`
	RoundTrip       *bool  `json:"round_trip,omitempty"`
}

// Booking is the server-issued booking record. ID correlates payments;
// BookingCode is for display only.
type Booking struct {
	ID             string `json:"id"`
	BookingCode    string `json:"booking_code"`
	Status         string `json:"status"`
	EstimatedPrice int64  `json:"estimated_price"`
	Currency       string `json:"currency"`
	CreatedAt      string `json:"created_at"`
}

// PaymentIntent is the provider-issued authorization attempt for a booking.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// PaymentStatus is returned by the confirm and status endpoints.
type PaymentStatus struct {
	Status string `json:"status"`
}

type createIntentRequest struct {
	BookingID string `json:"booking_id"`
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

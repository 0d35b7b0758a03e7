package gateway

import (
	"errors"
	"fmt"
)

// CodeNetworkError marks failures where no HTTP response was received.
const CodeNetworkError = "network_error"

// CodeHTTPError marks non-2xx responses whose body was not a JSON error.
const CodeHTTPError = "http_error"

// APIError is the normalized form of every failed gateway call.
// Status is 0 when the request never reached the server.
type APIError struct {
	Status  int            `json:"status"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("gateway: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gateway: status %d: %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errorBody mirrors the backend's JSON error envelope.
type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

var errorMessages = map[string]string{
	"invalid_email":          "Please enter a valid email address",
	"invalid_phone":          "Please enter a valid phone number",
	"invalid_date":           "Please select a valid pickup date",
	"past_date":              "Pickup date cannot be in the past",
	"invalid_time":           "Please enter a valid pickup time",
	"invalid_vehicle_type":   "Please select a valid vehicle type",
	"invalid_service_type":   "Please select a valid service type",
	"missing_required_field": "Please fill in all required fields",
	"validation_error":       "Some booking details are invalid. Please review and try again",
	"booking_not_found":      "We couldn't find that booking",
	"payment_intent_failed":  "We couldn't start the payment. Please try again",
	"payment_failed":         "Payment failed. Please try again",
	"payment_already_paid":   "This booking has already been paid",
	"unauthorized":           "Please sign in to continue",
	"rate_limit_exceeded":    "Too many requests. Please wait a moment and try again",
	"internal_error":         "Something went wrong on our side. Please try again shortly",
	CodeNetworkError:         "Unable to reach the booking service. Please check your connection and try again",
}

// ErrorMessage turns a gateway failure into a sentence fit for the user.
// Known codes map through a fixed table; anything else returns the
// server-provided message unchanged.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	if msg, ok := errorMessages[apiErr.Code]; ok {
		return msg
	}
	return apiErr.Message
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}

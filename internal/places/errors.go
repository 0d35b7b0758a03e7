package places

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey means the mapping service was never configured.
	ErrMissingAPIKey = errors.New("places: maps api key missing")
	// ErrUnavailable is returned by lookups while the loader is in its error state.
	ErrUnavailable = errors.New("places: address service unavailable")
)

// StatusError carries a non-OK status from the mapping service.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("places: %s: %s", e.Status, e.Message)
	}
	return "places: " + e.Status
}

var statusMessages = map[string]string{
	"ZERO_RESULTS":              "We couldn't find a route between those addresses",
	"NOT_FOUND":                 "One of the addresses could not be found",
	"OVER_QUERY_LIMIT":          "Address lookups are temporarily limited. Please try again shortly",
	"OVER_DAILY_LIMIT":          "Address lookups are temporarily limited. Please try again shortly",
	"REQUEST_DENIED":            "Address suggestions are not available right now",
	"INVALID_REQUEST":           "Please enter a more complete address",
	"MAX_ROUTE_LENGTH_EXCEEDED": "That route is too long to estimate",
	"MAX_ELEMENTS_EXCEEDED":     "That route is too long to estimate",
	"UNKNOWN_ERROR":             "The address service had a problem. Please try again",
}

// StatusMessage maps a mapping-service error to a user-facing sentence.
func StatusMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrUnavailable) {
		return DegradedWarning
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if msg, ok := statusMessages[statusErr.Status]; ok {
			return msg
		}
	}
	return "The address service had a problem. Please try again"
}

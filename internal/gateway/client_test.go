package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chauffeur-booking/internal/observability/metrics"
)

type staticToken struct {
	token string
	err   error
}

func (s staticToken) AccessToken(context.Context) (string, error) {
	return s.token, s.err
}

func TestCreateBookingSendsJSONAndBearer(t *testing.T) {
	var got CreateBookingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/bookings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok_123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"bk_1","booking_code":"LUX-0001","status":"pending","estimated_price":7500,"currency":"USD","created_at":"2026-10-15T10:00:00Z"}`)
	}))
	defer srv.Close()

	client := New(srv.URL+"/api/", WithMetrics(metrics.NewWorkflowMetrics(prometheus.NewRegistry()))).
		WithTokenSource(staticToken{token: "tok_123"})

	booking, err := client.CreateBooking(context.Background(), CreateBookingRequest{
		PickupLocation:  "1 Main St",
		DropoffLocation: "PHX Sky Harbor",
		VehicleType:     "escalade",
	})
	require.NoError(t, err)
	assert.Equal(t, "bk_1", booking.ID)
	assert.Equal(t, "LUX-0001", booking.BookingCode)
	assert.Equal(t, int64(7500), booking.EstimatedPrice)
	assert.Equal(t, "1 Main St", got.PickupLocation)
	assert.Equal(t, "PHX Sky Harbor", got.DropoffLocation)
}

func TestRequestOmitsAuthorizationWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"status":"ok","timestamp":"now"}`)
	}))
	defer srv.Close()

	for _, ts := range []TokenSource{nil, staticToken{}, staticToken{err: errors.New("corrupt session")}} {
		client := New(srv.URL).WithTokenSource(ts)
		health, err := client.Health(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", health.Status)
	}
}

func TestNonSuccessParsesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_phone","message":"phone failed validation","details":{"field":"customer_phone"}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateBooking(context.Background(), CreateBookingRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "invalid_phone", apiErr.Code)
	assert.Equal(t, "phone failed validation", apiErr.Message)
	assert.Equal(t, "customer_phone", apiErr.Details["field"])
	assert.Equal(t, "Please enter a valid phone number", ErrorMessage(err))
}

func TestExplicitCodeWinsOverErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":"Conflict","code":"payment_already_paid"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreatePaymentIntent(context.Background(), "bk_1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "payment_already_paid", apiErr.Code)
	assert.Equal(t, "Conflict", apiErr.Message)
}

func TestUnparseableErrorBodySynthesizesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetBooking(context.Background(), "bk_1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 502, apiErr.Status)
	assert.Equal(t, CodeHTTPError, apiErr.Code)
	assert.Equal(t, "HTTP 502: Bad Gateway", apiErr.Message)
	assert.Equal(t, "HTTP 502: Bad Gateway", ErrorMessage(err))
}

func TestNetworkFailureIsStatusZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).GetPricing(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, CodeNetworkError, apiErr.Code)
	assert.NotNil(t, errors.Unwrap(apiErr))
}

func TestHealthAbortsAfterTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := New(srv.URL, WithHealthTimeout(50*time.Millisecond)).Health(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.Status)
}

func TestPaymentEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/create-intent":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "bk_9", body["booking_id"])
			fmt.Fprint(w, `{"id":"pi_1","client_secret":"pi_1_secret_x","amount":12000,"currency":"usd","status":"requires_payment_method"}`)
		case "/payments/confirm":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "pi_1", body["payment_intent_id"])
			fmt.Fprint(w, `{"status":"succeeded"}`)
		case "/payments/pi_1/status":
			fmt.Fprint(w, `{"status":"processing"}`)
		case "/pricing":
			fmt.Fprint(w, `{"pricing":{"escalade":{"base_rate":15000,"per_hour_rate":12500,"airport_transfer_rate":17500,"minimum_charge":25000}},"currency":"USD"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client := New(srv.URL)

	intent, err := client.CreatePaymentIntent(ctx, "bk_9")
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret_x", intent.ClientSecret)
	assert.Equal(t, int64(12000), intent.Amount)

	confirmed, err := client.ConfirmPayment(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", confirmed.Status)

	status, err := client.GetPaymentStatus(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "processing", status.Status)

	pricing, err := client.GetPricing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(17500), pricing.Pricing["escalade"].AirportTransferRate)

	_, err = client.GetBooking(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"mapped", &APIError{Status: 400, Code: "invalid_phone", Message: "bad"}, "Please enter a valid phone number"},
		{"unmapped keeps server message", &APIError{Status: 400, Code: "vehicle_unavailable", Message: "No Sprinter free at that time"}, "No Sprinter free at that time"},
		{"network", &APIError{Code: CodeNetworkError, Message: "dial tcp"}, "Unable to reach the booking service. Please check your connection and try again"},
		{"wrapped", fmt.Errorf("booking: submit: %w", &APIError{Code: "past_date"}), "Pickup date cannot be in the past"},
		{"plain error", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.err))
		})
	}
}

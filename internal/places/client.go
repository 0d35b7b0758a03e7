// Package places adapts the Google Maps web services for address
// suggestions and drive-time estimates.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

const defaultBaseURL = "https://maps.googleapis.com"

// Suggestion is one autocomplete prediction.
type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// Route is a drive estimate between two addresses.
type Route struct {
	DistanceMeters  int `json:"distance_meters"`
	DurationSeconds int `json:"duration_seconds"`
}

// DurationMinutes rounds the drive time up to whole minutes.
func (r Route) DurationMinutes() int {
	return (r.DurationSeconds + 59) / 60
}

// Client calls the mapping REST endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a maps client. An empty baseURL uses Google's endpoint.
func NewClient(apiKey, baseURL string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type autocompleteResponse struct {
	Predictions  []Suggestion `json:"predictions"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message"`
}

// Autocomplete returns address predictions for partial input.
func (c *Client) Autocomplete(ctx context.Context, input string) ([]Suggestion, error) {
	q := url.Values{}
	q.Set("input", input)
	q.Set("types", "geocode|establishment")
	var out autocompleteResponse
	if err := c.get(ctx, "/maps/api/place/autocomplete/json", q, &out); err != nil {
		return nil, err
	}
	if err := statusErr(out.Status, out.ErrorMessage, "ZERO_RESULTS"); err != nil {
		return nil, err
	}
	return out.Predictions, nil
}

type detailsResponse struct {
	Result struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"result"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// PlaceAddress resolves a selected prediction to its formatted address.
func (c *Client) PlaceAddress(ctx context.Context, placeID string) (string, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "formatted_address")
	var out detailsResponse
	if err := c.get(ctx, "/maps/api/place/details/json", q, &out); err != nil {
		return "", err
	}
	if err := statusErr(out.Status, out.ErrorMessage); err != nil {
		return "", err
	}
	return out.Result.FormattedAddress, nil
}

type distanceMatrixResponse struct {
	Rows []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Route estimates drive distance and duration between two free-text addresses.
func (c *Client) Route(ctx context.Context, origin, destination string) (Route, error) {
	q := url.Values{}
	q.Set("origins", origin)
	q.Set("destinations", destination)
	q.Set("mode", "driving")
	var out distanceMatrixResponse
	if err := c.get(ctx, "/maps/api/distancematrix/json", q, &out); err != nil {
		return Route{}, err
	}
	if err := statusErr(out.Status, out.ErrorMessage); err != nil {
		return Route{}, err
	}
	if len(out.Rows) == 0 || len(out.Rows[0].Elements) == 0 {
		return Route{}, &StatusError{Status: "ZERO_RESULTS"}
	}
	el := out.Rows[0].Elements[0]
	if err := statusErr(el.Status, ""); err != nil {
		return Route{}, err
	}
	return Route{DistanceMeters: el.Distance.Value, DurationSeconds: el.Duration.Value}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("places: request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places: http: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("places: api status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("places: decode: %w", err)
	}
	return nil
}

func statusErr(status, message string, okStatuses ...string) error {
	if status == "OK" {
		return nil
	}
	for _, s := range okStatuses {
		if status == s {
			return nil
		}
	}
	if status == "" {
		status = "UNKNOWN_ERROR"
	}
	return &StatusError{Status: status, Message: message}
}

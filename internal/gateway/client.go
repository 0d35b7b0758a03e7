// Package gateway is the typed client for the remote booking, pricing and
// payment API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/chauffeur-booking/internal/observability/metrics"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

const defaultHealthTimeout = 5 * time.Second

// TokenSource yields the bearer token of the current session, or "" when
// there is none.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client issues JSON requests against the backend base URL.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokens        TokenSource
	healthTimeout time.Duration
	logger        *logging.Logger
	metrics       *metrics.WorkflowMetrics
	tracer        trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport. No timeout is set by default;
// the platform's transport policy applies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records per-operation counters and latency.
func WithMetrics(m *metrics.WorkflowMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHealthTimeout sets the abort timeout for Health. It is the only
// timeout the gateway applies.
func WithHealthTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.healthTimeout = d
		}
	}
}

// New creates a gateway client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		healthTimeout: defaultHealthTimeout,
		logger:        logging.Default(),
		tracer:        otel.Tracer("chauffeur.internal.gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTokenSource returns a copy of the client that attaches tokens from ts.
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// Request performs one JSON call and decodes a 2xx body into T. Every
// failure comes back as *APIError.
func Request[T any](ctx context.Context, c *Client, operation, method, endpoint string, body any) (T, error) {
	var out T

	ctx, span := c.tracer.Start(ctx, "gateway."+operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("chauffeur.endpoint", endpoint),
	)

	start := time.Now()
	status, err := c.do(ctx, method, endpoint, body, &out)
	c.metrics.ObserveGatewayRequest(operation, strconv.Itoa(status), time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("gateway request failed", "operation", operation, "endpoint", endpoint, "status", status, "error", err)
		return out, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, &APIError{Code: "encode_error", Message: err.Error(), Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return 0, &APIError{Code: CodeNetworkError, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &APIError{Code: CodeNetworkError, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return resp.StatusCode, &APIError{
			Status:  resp.StatusCode,
			Code:    "decode_error",
			Message: fmt.Sprintf("invalid response body: %v", err),
			Err:     err,
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) bearer(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		c.logger.Debug("no usable session token", "error", err)
		return ""
	}
	return token
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || (body.Error == "" && body.Message == "" && body.Code == "") {
		return &APIError{
			Status:  resp.StatusCode,
			Code:    CodeHTTPError,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Code:    body.Code,
		Message: body.Message,
		Details: body.Details,
	}
	if apiErr.Code == "" {
		apiErr.Code = body.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = body.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return apiErr
}

func pathEscape(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}

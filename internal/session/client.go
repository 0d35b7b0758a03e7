// Package session tracks a visitor's sign-in state against the hosted auth
// service (Supabase GoTrue).
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

// AuthError is a non-2xx answer from the auth service.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %d %s: %s", e.Status, e.Code, e.Message)
}

// AuthClient talks to the GoTrue REST endpoints under /auth/v1.
type AuthClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *logging.Logger
	now        func() time.Time
}

// NewAuthClient creates a client for the project at authURL.
func NewAuthClient(authURL, anonKey string, logger *logging.Logger) *AuthClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthClient{
		baseURL:    strings.TrimRight(authURL, "/") + "/auth/v1",
		anonKey:    anonKey,
		httpClient: &http.Client{},
		logger:     logger,
		now:        time.Now,
	}
}

type credentials struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// SignInWithPassword exchanges email and password for a session.
func (c *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	if err := c.call(ctx, http.MethodPost, "/token?grant_type=password", "", credentials{Email: email, Password: password}, &s); err != nil {
		return nil, err
	}
	return c.stamp(&s), nil
}

// SignUp registers an account. When the project requires email
// confirmation no session is issued and only the user comes back.
func (c *AuthClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, *User, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPost, "/signup", "", credentials{Email: email, Password: password, Data: metadata}, &raw); err != nil {
		return nil, nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err == nil && s.AccessToken != "" {
		c.stamp(&s)
		return &s, s.User, nil
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, nil, fmt.Errorf("auth: signup: decode: %w", err)
	}
	return nil, &u, nil
}

// Refresh trades a refresh token for a new session.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var s Session
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.call(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &s); err != nil {
		return nil, err
	}
	return c.stamp(&s), nil
}

// SignOut revokes the session server-side.
func (c *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	return c.call(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// GetUser returns the account behind an access token.
func (c *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodGet, "/user", accessToken, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *AuthClient) stamp(s *Session) *Session {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	return s
}

func (c *AuthClient) call(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("auth: encode: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("auth: request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer == "" {
		bearer = c.anonKey
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAuthError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("auth: decode: %w", err)
	}
	return nil
}

// GoTrue has answered errors in two shapes over its versions.
type authErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func decodeAuthError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var body authErrorBody
	_ = json.Unmarshal(raw, &body)
	out := &AuthError{Status: resp.StatusCode}
	out.Code = firstNonEmpty(body.ErrorCode, body.Error, "auth_error")
	out.Message = firstNonEmpty(body.Msg, body.ErrorDescription, body.Message, http.StatusText(resp.StatusCode))
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

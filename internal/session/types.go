package session

import (
	"net/url"
	"strings"
	"time"
)

// expiryMargin refreshes a session slightly before the provider rejects it.
const expiryMargin = 10 * time.Second

// User is the account as the hosted auth service reports it.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Role reads user_metadata.role. Empty for customers.
func (u *User) Role() string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	role, _ := u.UserMetadata["role"].(string)
	return strings.ToLower(strings.TrimSpace(role))
}

// HomePath is where a signed-in user lands.
func HomePath(u *User) string {
	switch u.Role() {
	case "admin":
		return "/admin"
	case "driver":
		return "/driver"
	default:
		return "/book"
	}
}

// Session is the token bundle issued by the auth service. Its JSON form is
// what gets persisted in the visitor's storage.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// Expired reports whether the access token is past (or about to pass) its
// expiry. Sessions without an expiry never expire locally.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt == 0 {
		return false
	}
	return !now.Add(expiryMargin).Before(time.Unix(s.ExpiresAt, 0))
}

// StorageKey derives the storage slot name from the auth URL:
// sb-<project-ref>-auth-token, project-ref being the first label of the host.
func StorageKey(authURL string) string {
	host := authURL
	if u, err := url.Parse(authURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	ref, _, _ := strings.Cut(host, ".")
	return "sb-" + ref + "-auth-token"
}

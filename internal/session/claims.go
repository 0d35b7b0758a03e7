package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields of a Supabase access token the app reads.
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// User rebuilds the account view carried by the token.
func (c *Claims) User() *User {
	return &User{ID: c.Subject, Email: c.Email, UserMetadata: c.UserMetadata}
}

// ClaimsParser reads access tokens. With a secret it verifies HS256
// signatures and expiry; without one the token is decoded as-is and the
// auth service stays the issuer of record.
type ClaimsParser struct {
	secret []byte
}

// NewClaimsParser returns a parser; an empty secret disables verification.
func NewClaimsParser(secret string) *ClaimsParser {
	p := &ClaimsParser{}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

// Verifies reports whether signatures are checked.
func (p *ClaimsParser) Verifies() bool {
	return p != nil && len(p.secret) > 0
}

// Parse decodes token into Claims. Expired tokens fail with an error
// wrapping jwt.ErrTokenExpired when verification is on.
func (p *ClaimsParser) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	if !p.Verifies() {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("session: parse token: %w", err)
		}
		return claims, nil
	}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("session: verify token: %w", err)
	}
	return claims, nil
}

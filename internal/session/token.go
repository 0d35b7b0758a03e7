package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfman30/chauffeur-booking/internal/storage"
)

// StoredToken reads the access token straight from the persisted session
// slot. A missing slot yields no token.
type StoredToken struct {
	Local storage.Local
	Key   string
}

// AccessToken implements gateway.TokenSource.
func (t StoredToken) AccessToken(ctx context.Context) (string, error) {
	if t.Local == nil {
		return "", nil
	}
	raw, ok, err := t.Local.Get(ctx, t.Key)
	if err != nil || !ok {
		return "", err
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", fmt.Errorf("session: stored session unreadable: %w", err)
	}
	return s.AccessToken, nil
}

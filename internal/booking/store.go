package booking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfman30/chauffeur-booking/internal/storage"
)

// DraftKey is the storage slot holding the visitor's unsent draft.
const DraftKey = "chauffeur_booking_draft"

// DraftStore persists a draft in the visitor's storage.
type DraftStore struct {
	local storage.Local
}

func NewDraftStore(local storage.Local) *DraftStore {
	return &DraftStore{local: local}
}

// Load returns the saved draft. ok is false when nothing is saved.
func (s *DraftStore) Load(ctx context.Context) (Draft, bool, error) {
	raw, ok, err := s.local.Get(ctx, DraftKey)
	if err != nil || !ok {
		return Draft{}, false, err
	}
	var d Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Draft{}, false, fmt.Errorf("booking: decode draft: %w", err)
	}
	return d, true, nil
}

func (s *DraftStore) Save(ctx context.Context, d Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("booking: encode draft: %w", err)
	}
	return s.local.Set(ctx, DraftKey, string(raw))
}

func (s *DraftStore) Clear(ctx context.Context) error {
	return s.local.Remove(ctx, DraftKey)
}

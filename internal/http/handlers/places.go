package handlers

import (
	"net/http"

	"github.com/wolfman30/chauffeur-booking/internal/places"
)

// PlacesHandler serves address suggestions.
type PlacesHandler struct {
	places *places.Service
}

func NewPlacesHandler(placesSvc *places.Service) *PlacesHandler {
	return &PlacesHandler{places: placesSvc}
}

func (h *PlacesHandler) degraded() places.Suggestions {
	return places.Suggestions{State: places.StateError, Suggestions: []places.Suggestion{}, Warning: places.DegradedWarning}
}

// Autocomplete is GET /api/places/autocomplete?input=. It always answers
// 200; a degraded service is reported in the warning.
func (h *PlacesHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	if h.places == nil {
		writeJSON(w, http.StatusOK, h.degraded())
		return
	}
	writeJSON(w, http.StatusOK, h.places.Suggest(r.Context(), r.URL.Query().Get("input")))
}

// Status is GET /api/places/status.
func (h *PlacesHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.places == nil {
		writeJSON(w, http.StatusOK, h.degraded())
		return
	}
	writeJSON(w, http.StatusOK, h.places.Status())
}

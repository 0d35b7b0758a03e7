package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/chauffeur-booking/internal/booking"
	"github.com/wolfman30/chauffeur-booking/internal/gateway"
	"github.com/wolfman30/chauffeur-booking/internal/places"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

// BookingHandler drives the visitor's booking form.
type BookingHandler struct {
	workspaces *Workspaces
	places     *places.Service
	logger     *logging.Logger
}

func NewBookingHandler(workspaces *Workspaces, placesSvc *places.Service, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{workspaces: workspaces, places: placesSvc, logger: logger}
}

// Draft is GET /api/booking/draft.
func (h *BookingHandler) Draft(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	writeJSON(w, http.StatusOK, ws.Form.Snapshot())
}

// UpdateDraft is PATCH /api/booking/draft. The body maps field names to
// values. Location is applied first so region fields in the same patch
// land on the new region.
func (h *BookingHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	var patch map[string]any
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	fieldErrs := map[string]string{}
	apply := func(name string, raw any) {
		if err := ws.Form.Set(booking.Field(name), stringify(raw)); err != nil {
			fieldErrs[name] = fieldErrorMessage(err)
		}
	}
	if raw, ok := patch[string(booking.FieldLocation)]; ok {
		apply(string(booking.FieldLocation), raw)
	}
	for name, raw := range patch {
		if name == string(booking.FieldLocation) {
			continue
		}
		apply(name, raw)
	}

	snap := ws.Form.Snapshot()
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, struct {
			errorResponse
			Snapshot booking.Snapshot `json:"snapshot"`
		}{errorResponse{Error: "invalid_fields", Message: booking.MsgCorrectErrors, Fields: fieldErrs}, snap})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ResetDraft is DELETE /api/booking/draft.
func (h *BookingHandler) ResetDraft(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	writeJSON(w, http.StatusOK, ws.Form.Reset(r.Context()))
}

type addressRequest struct {
	Field   string `json:"field"`
	Address string `json:"address"`
	PlaceID string `json:"place_id,omitempty"`
}

type addressResponse struct {
	Snapshot     booking.Snapshot `json:"snapshot"`
	RouteMinutes int              `json:"route_minutes,omitempty"`
	RouteWarning string           `json:"route_warning,omitempty"`
	RoutePending bool             `json:"route_pending"`
}

// SelectAddress is POST /api/booking/draft/address. A place_id is
// resolved to its formatted address first. With ?wait=true the response
// waits for the drive-time estimate.
func (h *BookingHandler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	address := strings.TrimSpace(req.Address)
	if req.PlaceID != "" && h.places != nil {
		resolved, err := h.places.Resolve(r.Context(), req.PlaceID)
		if err != nil {
			h.logger.Warn("place lookup failed; keeping typed address", "error", err)
		} else if resolved != "" {
			address = resolved
		}
	}

	lookup, err := ws.Form.SelectAddress(r.Context(), booking.Field(req.Field), address)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_field", fieldErrorMessage(err))
		return
	}

	resp := addressResponse{RoutePending: true}
	if r.URL.Query().Get("wait") == "true" {
		select {
		case <-lookup.Done():
			out := lookup.Wait()
			resp.RoutePending = false
			if out.Err != nil {
				resp.RouteWarning = places.StatusMessage(out.Err)
			} else if !out.Skipped {
				resp.RouteMinutes = out.Minutes
			}
		case <-r.Context().Done():
		}
	} else {
		select {
		case <-lookup.Done():
			resp.RoutePending = false
		default:
		}
	}
	resp.Snapshot = ws.Form.Snapshot()
	writeJSON(w, http.StatusOK, resp)
}

type submitResponse struct {
	Booking  gateway.Booking `json:"booking"`
	Redirect string          `json:"redirect"`
}

// Submit is POST /api/booking/submit.
func (h *BookingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	created, err := ws.Form.Submit(r.Context())
	if err == nil {
		writeJSON(w, http.StatusCreated, submitResponse{Booking: created, Redirect: booking.PaymentPath(created.ID)})
		return
	}

	var verr *booking.ValidationError
	switch {
	case errors.Is(err, booking.ErrSubmitInFlight):
		writeError(w, http.StatusConflict, "submit_in_flight", "Your booking is already being submitted.")
	case errors.Is(err, booking.ErrSignInRequired):
		writeError(w, http.StatusUnauthorized, "sign_in_required", booking.MsgSignInRequired)
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Fields))
		for f, msg := range verr.Fields {
			fields[string(f)] = msg
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "validation_failed",
			Message: booking.MsgCorrectErrors,
			Fields:  fields,
		})
	default:
		writeGatewayError(w, err)
	}
}

// Get is GET /api/bookings/{id}.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_id", "booking id is required")
		return
	}
	b, err := ws.Gateway.GetBooking(r.Context(), id)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}

func fieldErrorMessage(err error) string {
	switch {
	case errors.Is(err, booking.ErrUnknownField):
		return "Unknown field."
	case errors.Is(err, booking.ErrFieldNotApplicable):
		return "This field does not apply to the selected location."
	case errors.Is(err, booking.ErrInvalidValue):
		return "Please enter a valid value."
	default:
		return err.Error()
	}
}

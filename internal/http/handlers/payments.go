package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/chauffeur-booking/internal/gateway"
	"github.com/wolfman30/chauffeur-booking/internal/payments"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

// PaymentsHandler drives the visitor's payment page.
type PaymentsHandler struct {
	workspaces *Workspaces
	logger     *logging.Logger
}

func NewPaymentsHandler(workspaces *Workspaces, logger *logging.Logger) *PaymentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PaymentsHandler{workspaces: workspaces, logger: logger}
}

type intentRequest struct {
	BookingID string `json:"booking_id"`
}

// Intent is POST /api/payments/intent. The body or ?booking_id= names the
// booking; the response is the page view either way.
func (h *PaymentsHandler) Intent(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	bookingID := r.URL.Query().Get("booking_id")
	if r.ContentLength != 0 {
		var req intentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if strings.TrimSpace(req.BookingID) != "" {
			bookingID = req.BookingID
		}
	}

	view, err := ws.Payment.Init(r.Context(), bookingID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, view)
	case errors.Is(err, payments.ErrMissingBookingID):
		writeJSON(w, http.StatusBadRequest, view)
	case errors.Is(err, payments.ErrConfirmInFlight):
		writeError(w, http.StatusConflict, "confirm_in_flight", "A payment is already being confirmed.")
	case errors.Is(err, payments.ErrInitSuperseded):
		writeError(w, http.StatusConflict, "superseded", "Another payment page was opened for this visitor.")
	default:
		writeJSON(w, gatewayStatus(err), view)
	}
}

// View is GET /api/payments/view.
func (h *PaymentsHandler) View(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	writeJSON(w, http.StatusOK, ws.Payment.View())
}

type confirmRequest struct {
	Card    payments.CardInput      `json:"card"`
	Billing payments.BillingDetails `json:"billing"`
}

type confirmResponse struct {
	View   payments.View `json:"view"`
	Notify string        `json:"notify_warning,omitempty"`
}

// Confirm is POST /api/payments/confirm.
func (h *PaymentsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	out, err := ws.Payment.Confirm(r.Context(), req.Card, req.Billing)
	if err == nil {
		resp := confirmResponse{View: ws.Payment.View()}
		if out.NotifyErr != nil {
			resp.Notify = gateway.ErrorMessage(out.NotifyErr)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var billingErr *payments.BillingError
	switch {
	case errors.Is(err, payments.ErrCardIncomplete):
		writeError(w, http.StatusUnprocessableEntity, "card_incomplete", payments.MsgCardIncomplete)
	case errors.As(err, &billingErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "invalid_billing",
			Message: ws.Payment.View().Message,
			Fields:  billingErr.Fields,
		})
	case errors.Is(err, payments.ErrNotReady):
		writeError(w, http.StatusConflict, "not_ready", "The payment form is not ready yet.")
	case errors.Is(err, payments.ErrConfirmInFlight):
		writeError(w, http.StatusConflict, "confirm_in_flight", "A payment is already being confirmed.")
	default:
		writeJSON(w, http.StatusPaymentRequired, struct {
			errorResponse
			View payments.View `json:"view"`
		}{errorResponse{Error: "payment_failed", Message: ws.Payment.View().Message}, ws.Payment.View()})
	}
}

// Status is GET /api/payments/{id}/status.
func (h *PaymentsHandler) Status(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_id", "payment intent id is required")
		return
	}
	st, err := ws.Gateway.GetPaymentStatus(r.Context(), id)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func gatewayStatus(err error) int {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

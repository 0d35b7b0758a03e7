package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/wolfman30/chauffeur-booking/internal/gateway"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeGatewayError relays a backend failure with its mapped message.
// Transport failures become 502.
func writeGatewayError(w http.ResponseWriter, err error) {
	var apiErr *gateway.APIError
	if !errors.As(err, &apiErr) {
		writeError(w, http.StatusInternalServerError, "internal_error", gateway.ErrorMessage(err))
		return
	}
	status := apiErr.Status
	if status < 400 {
		status = http.StatusBadGateway
	}
	writeError(w, status, apiErr.Code, gateway.ErrorMessage(err))
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func noVisitor(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "missing_visitor", "Your browser session could not be identified. Please enable cookies.")
}

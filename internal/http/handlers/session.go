package handlers

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/chauffeur-booking/internal/session"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

// SessionHandler exposes the visitor's sign-in state.
type SessionHandler struct {
	workspaces *Workspaces
	logger     *logging.Logger
}

func NewSessionHandler(workspaces *Workspaces, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{workspaces: workspaces, logger: logger}
}

type sessionResponse struct {
	User     *session.User `json:"user"`
	Loading  bool          `json:"loading"`
	HomePath string        `json:"home_path,omitempty"`
}

func sessionView(st session.State) sessionResponse {
	resp := sessionResponse{User: st.User, Loading: st.Loading}
	if st.User != nil {
		resp.HomePath = session.HomePath(st.User)
	}
	return resp
}

// Current is GET /api/session.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(ws.Session.State()))
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// SignIn is POST /api/session/sign-in.
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if _, err := ws.Session.SignIn(r.Context(), req.Email, req.Password); err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(ws.Session.State()))
}

// SignUp is POST /api/session/sign-up. When the account needs email
// confirmation the response carries the new user but no session.
func (h *SessionHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	var metadata map[string]any
	if name := strings.TrimSpace(req.FullName); name != "" {
		metadata = map[string]any{"full_name": name}
	}
	user, err := ws.Session.SignUp(r.Context(), req.Email, req.Password, metadata)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	st := ws.Session.State()
	resp := struct {
		sessionResponse
		ConfirmationRequired bool `json:"confirmation_required"`
	}{sessionView(st), st.User == nil}
	if resp.User == nil {
		resp.User = user
	}
	writeJSON(w, http.StatusCreated, resp)
}

// SignOut is POST /api/session/sign-out.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	if err := ws.Session.SignOut(r.Context()); err != nil && !errors.Is(err, session.ErrNotSignedIn) {
		h.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrCredentialsRequired) {
		writeError(w, http.StatusBadRequest, "credentials_required", "Please enter your email and password.")
		return
	}
	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		status := authErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		code := authErr.Code
		if code == "" {
			code = "auth_error"
		}
		writeError(w, status, code, authErr.Message)
		return
	}
	h.logger.Error("auth service call failed", "error", err)
	writeError(w, http.StatusBadGateway, "auth_unavailable", "Sign-in is temporarily unavailable. Please try again.")
}

// authStateMessage is pushed over the events socket.
type authStateMessage struct {
	Type     string            `json:"type"`
	Event    session.EventType `json:"event"`
	User     *session.User     `json:"user"`
	HomePath string            `json:"home_path,omitempty"`
}

type inboundMessage struct {
	Type string `json:"type"`
}

// Events is GET /api/session/events, a websocket that streams auth state
// changes. Clients may send {"type":"ping"} and receive a pong.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(r, h.workspaces)
	if !ok {
		noVisitor(w)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveEvents(conn, ws)
	}).ServeHTTP(w, r)
}

func (h *SessionHandler) serveEvents(conn *websocket.Conn, ws *Workspace) {
	events, cancel := ws.Session.Subscribe()
	defer cancel()

	// websocket.Conn is not safe for concurrent writers.
	var sendMu sync.Mutex
	send := func(v any) error {
		sendMu.Lock()
		defer sendMu.Unlock()
		return websocket.JSON.Send(conn, v)
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg inboundMessage
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				return
			}
			if msg.Type == "ping" {
				_ = send(map[string]string{"type": "pong"})
			}
		}
	}()

	h.logger.Debug("session events: connection opened", "visitor_id", ws.VisitorID)
	defer h.logger.Debug("session events: connection closed", "visitor_id", ws.VisitorID)

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := authStateMessage{Type: "auth_state", Event: ev.Type, User: ev.User}
			if ev.User != nil {
				msg.HomePath = session.HomePath(ev.User)
			}
			if err := send(msg); err != nil {
				return
			}
		}
	}
}

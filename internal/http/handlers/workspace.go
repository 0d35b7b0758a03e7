package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/wolfman30/chauffeur-booking/internal/booking"
	"github.com/wolfman30/chauffeur-booking/internal/gateway"
	"github.com/wolfman30/chauffeur-booking/internal/observability/metrics"
	"github.com/wolfman30/chauffeur-booking/internal/payments"
	"github.com/wolfman30/chauffeur-booking/internal/places"
	"github.com/wolfman30/chauffeur-booking/internal/session"
	"github.com/wolfman30/chauffeur-booking/internal/storage"
	"github.com/wolfman30/chauffeur-booking/internal/visitor"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

// Workspace bundles one visitor's workflow state.
type Workspace struct {
	VisitorID string
	Session   *session.Provider
	Form      *booking.Form
	Payment   *payments.Controller
	Gateway   *gateway.Client

	ready sync.Once
}

// WorkspaceDeps are the process-wide services every workspace shares.
type WorkspaceDeps struct {
	Storage     storage.Backend
	Gateway     *gateway.Client
	Places      *places.Service
	Auth        session.Authenticator
	Claims      *session.ClaimsParser
	SessionKey  string
	Confirmer   payments.CardConfirmer
	Metrics     *metrics.WorkflowMetrics
	Logger      *logging.Logger
	Debounce    time.Duration
	RequireAuth bool
}

// NewWorkspace builds the visitor's controllers. It does no I/O; call
// Ready before first use.
func NewWorkspace(id string, deps WorkspaceDeps) *Workspace {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = &logging.Logger{Logger: logger.With("visitor_id", id)}
	local := deps.Storage.For(id)

	provider := session.NewProvider(deps.Auth, local, deps.SessionKey, deps.Claims, logger.Component("session"))
	gw := deps.Gateway.WithTokenSource(session.StoredToken{Local: local, Key: deps.SessionKey})

	var routes booking.RouteEstimator
	if deps.Places != nil {
		routes = deps.Places
	}
	form := booking.NewForm(booking.NewDraftStore(local), gw, routes, provider, booking.Options{
		Debounce:    deps.Debounce,
		RequireAuth: deps.RequireAuth,
		Metrics:     deps.Metrics,
		Logger:      logger.Component("booking"),
	})
	payment := payments.NewController(gw, deps.Confirmer, deps.Metrics, logger.Component("payments"))

	return &Workspace{
		VisitorID: id,
		Session:   provider,
		Form:      form,
		Payment:   payment,
		Gateway:   gw,
	}
}

// Ready restores the session and then the draft, once per workspace. The
// restore outlives the request that triggered it.
func (w *Workspace) Ready(ctx context.Context) *Workspace {
	w.ready.Do(func() {
		ctx := context.WithoutCancel(ctx)
		w.Session.Initialize(ctx)
		w.Form.Mount(ctx)
	})
	return w
}

// Close flushes the pending draft write and ends session subscriptions.
func (w *Workspace) Close() {
	w.Form.Flush(context.Background())
	w.Form.Close()
	w.Session.Close()
}

// Workspaces is the per-visitor registry.
type Workspaces = visitor.Registry[*Workspace]

// NewWorkspaces creates the registry evicting visitors idle for ttl.
func NewWorkspaces(ttl time.Duration, deps WorkspaceDeps) *Workspaces {
	return visitor.NewRegistry(ttl, func(id string) *Workspace {
		return NewWorkspace(id, deps)
	}, (*Workspace).Close)
}

func workspaceFor(r *http.Request, registry *Workspaces) (*Workspace, bool) {
	id, ok := visitor.IDFromContext(r.Context())
	if !ok {
		return nil, false
	}
	return registry.Get(id).Ready(r.Context()), true
}

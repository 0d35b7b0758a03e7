package booking

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/chauffeur-booking/internal/gateway"
	"github.com/wolfman30/chauffeur-booking/internal/observability/metrics"
	"github.com/wolfman30/chauffeur-booking/internal/places"
	"github.com/wolfman30/chauffeur-booking/internal/session"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

var (
	// ErrSubmitInFlight is returned while a previous submit is outstanding.
	ErrSubmitInFlight = errors.New("booking: submission already in progress")
	// ErrSignInRequired is returned when booking requires a session and
	// the visitor has none.
	ErrSignInRequired = errors.New("booking: sign in required")
)

// MsgSignInRequired is shown when an anonymous visitor submits.
const MsgSignInRequired = "Please sign in to complete your booking."

// DefaultDebounce is how long edits settle before the draft is written.
const DefaultDebounce = 500 * time.Millisecond

// Status is the form lifecycle.
type Status string

const (
	StatusEditing    Status = "editing"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Submitter creates bookings on the backend.
type Submitter interface {
	CreateBooking(ctx context.Context, req gateway.CreateBookingRequest) (gateway.Booking, error)
}

// RouteEstimator estimates drive time between two addresses.
type RouteEstimator interface {
	Route(ctx context.Context, origin, destination string) (places.Route, error)
}

// SessionReader exposes the visitor's sign-in state.
type SessionReader interface {
	State() session.State
}

// Options tunes a Form. Zero values pick defaults.
type Options struct {
	Debounce    time.Duration
	RequireAuth bool
	Now         func() time.Time
	Metrics     *metrics.WorkflowMetrics
	Logger      *logging.Logger
}

// Snapshot is what the page renders.
type Snapshot struct {
	Status          Status           `json:"status"`
	Draft           Draft            `json:"draft"`
	Errors          map[Field]string `json:"errors"`
	Message         string           `json:"message,omitempty"`
	AllowedVehicles []VehicleType    `json:"allowed_vehicles"`
	Booking         *gateway.Booking `json:"booking,omitempty"`
}

// Form is one visitor's booking form. All methods are safe for concurrent
// use; edits and submission serialize on the form's lock.
type Form struct {
	store    *DraftStore
	bookings Submitter
	routes   RouteEstimator
	session  SessionReader

	debounce    time.Duration
	requireAuth bool
	now         func() time.Time
	metrics     *metrics.WorkflowMetrics
	logger      *logging.Logger
	tracer      trace.Tracer

	mu      sync.Mutex
	draft   Draft
	errs    map[Field]string
	message string
	status  Status
	booking *gateway.Booking
	timer   *time.Timer
	gen     uint64

	// writeMu orders slot writes against Clear.
	writeMu sync.Mutex
}

// NewForm builds a form over the visitor's draft slot. routes and sess may
// be nil: without routes no duration estimate is made, without sess the
// email is never prefilled and RequireAuth always refuses.
func NewForm(store *DraftStore, bookings Submitter, routes RouteEstimator, sess SessionReader, opts Options) *Form {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Form{
		store:       store,
		bookings:    bookings,
		routes:      routes,
		session:     sess,
		debounce:    opts.Debounce,
		requireAuth: opts.RequireAuth,
		now:         opts.Now,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		tracer:      otel.Tracer("chauffeur.internal.booking"),
		draft:       NewDraft(),
		errs:        map[Field]string{},
		status:      StatusEditing,
	}
}

// Mount restores the saved draft, or starts a fresh one. A signed-in
// visitor's email replaces whatever email was saved.
func (f *Form) Mount(ctx context.Context) Snapshot {
	d, ok, err := f.store.Load(ctx)
	if err != nil {
		f.logger.Warn("discarding unreadable booking draft", "error", err)
	}
	if !ok {
		d = NewDraft()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = d
	f.applySessionEmailLocked()
	f.errs = map[Field]string{}
	f.message = ""
	f.status = StatusEditing
	f.booking = nil
	return f.snapshotLocked()
}

// Snapshot returns the current form state.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Set applies one edit, clears that field's error and schedules a draft
// write.
func (f *Form) Set(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.draft.Set(field, value); err != nil {
		return err
	}
	f.touchedLocked(field)
	return nil
}

func (f *Form) touchedLocked(field Field) {
	delete(f.errs, field)
	if field == FieldLocation {
		delete(f.errs, FieldVehicleType)
		for _, rf := range []Field{FieldDeparturePoint, FieldDestinationType, FieldGroupSize, FieldRoundTrip} {
			delete(f.errs, rf)
		}
	}
	if f.status == StatusFailed || f.status == StatusSucceeded {
		f.status = StatusEditing
		f.message = ""
		f.booking = nil
	}
	f.scheduleSaveLocked()
}

// RouteOutcome is the result of the background duration estimate.
type RouteOutcome struct {
	Minutes int
	Err     error
	Skipped bool
}

// RouteLookup tracks a background duration estimate.
type RouteLookup struct {
	done    chan struct{}
	outcome RouteOutcome
}

func skippedLookup() *RouteLookup {
	l := &RouteLookup{done: make(chan struct{}), outcome: RouteOutcome{Skipped: true}}
	close(l.done)
	return l
}

// Wait blocks until the estimate settles.
func (l *RouteLookup) Wait() RouteOutcome {
	<-l.done
	return l.outcome
}

// Done is closed when the estimate settles.
func (l *RouteLookup) Done() <-chan struct{} { return l.done }

// SelectAddress sets a pickup or destination address chosen by the
// visitor. Once both addresses are filled a drive-time lookup runs in the
// background and updates the estimated duration; its failure is logged and
// the form keeps its current duration.
func (f *Form) SelectAddress(ctx context.Context, field Field, address string) (*RouteLookup, error) {
	if field != FieldPickupAddress && field != FieldDestinationAddress {
		return nil, ErrUnknownField
	}
	f.mu.Lock()
	if err := f.draft.Set(field, address); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.touchedLocked(field)
	origin := strings.TrimSpace(f.draft.PickupAddress)
	destination := strings.TrimSpace(f.draft.DestinationAddress)
	f.mu.Unlock()

	if f.routes == nil || origin == "" || destination == "" {
		return skippedLookup(), nil
	}

	lookup := &RouteLookup{done: make(chan struct{})}
	go func() {
		defer close(lookup.done)
		route, err := f.routes.Route(context.WithoutCancel(ctx), origin, destination)
		f.metrics.ObserveDistanceLookup(err)
		if err != nil {
			f.logger.Warn("drive time lookup failed", "error", err)
			lookup.outcome = RouteOutcome{Err: err}
			return
		}
		minutes := max(route.DurationMinutes(), 1)
		lookup.outcome = RouteOutcome{Minutes: minutes}

		f.mu.Lock()
		defer f.mu.Unlock()
		// The visitor may have changed an address while the lookup ran.
		if strings.TrimSpace(f.draft.PickupAddress) != origin || strings.TrimSpace(f.draft.DestinationAddress) != destination {
			lookup.outcome.Skipped = true
			return
		}
		f.draft.EstimatedDuration = minutes
		delete(f.errs, FieldEstimatedDuration)
		f.scheduleSaveLocked()
	}()
	return lookup, nil
}

// Validate runs every rule and records the per-field messages.
func (f *Form) Validate() map[Field]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = Validate(f.draft, f.now())
	return copyErrs(f.errs)
}

// Submit validates and sends the draft. On success the saved draft is
// cleared and the form starts over; the caller redirects to
// PaymentPath(booking.ID).
func (f *Form) Submit(ctx context.Context) (gateway.Booking, error) {
	ctx, span := f.tracer.Start(ctx, "booking.submit")
	defer span.End()

	f.mu.Lock()
	if f.status == StatusSubmitting {
		f.mu.Unlock()
		return gateway.Booking{}, ErrSubmitInFlight
	}
	if f.requireAuth && !f.signedInLocked() {
		f.message = MsgSignInRequired
		f.mu.Unlock()
		f.metrics.ObserveBookingSubmission("unauthenticated")
		return gateway.Booking{}, ErrSignInRequired
	}
	f.errs = Validate(f.draft, f.now())
	if len(f.errs) > 0 {
		verr := &ValidationError{Fields: copyErrs(f.errs)}
		f.message = MsgCorrectErrors
		f.status = StatusFailed
		f.mu.Unlock()
		f.metrics.ObserveBookingSubmission("invalid")
		return gateway.Booking{}, verr
	}
	req, err := ToWire(f.draft)
	if err != nil {
		f.message = MsgCorrectErrors
		f.status = StatusFailed
		f.mu.Unlock()
		return gateway.Booking{}, err
	}
	f.status = StatusSubmitting
	f.message = ""
	f.mu.Unlock()

	span.SetAttributes(
		attribute.String("chauffeur.location", req.Location),
		attribute.String("chauffeur.service_type", req.ServiceType),
	)
	created, err := f.bookings.CreateBooking(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.mu.Lock()
		f.status = StatusFailed
		f.message = gateway.ErrorMessage(err)
		f.mu.Unlock()
		f.metrics.ObserveBookingSubmission("error")
		return gateway.Booking{}, err
	}

	f.mu.Lock()
	f.cancelSaveLocked()
	f.draft = NewDraft()
	f.applySessionEmailLocked()
	f.errs = map[Field]string{}
	f.status = StatusSucceeded
	f.booking = &created
	f.mu.Unlock()

	f.clearSlot(ctx)
	f.metrics.ObserveBookingSubmission("success")
	f.logger.Info("booking created", "booking_id", created.ID, "location", req.Location)
	return created, nil
}

// Reset discards the draft and its saved copy.
func (f *Form) Reset(ctx context.Context) Snapshot {
	f.mu.Lock()
	f.cancelSaveLocked()
	f.draft = NewDraft()
	f.applySessionEmailLocked()
	f.errs = map[Field]string{}
	f.message = ""
	f.status = StatusEditing
	f.booking = nil
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.clearSlot(ctx)
	return snap
}

// Flush writes a pending draft immediately.
func (f *Form) Flush(ctx context.Context) {
	f.mu.Lock()
	if f.timer == nil || !f.timer.Stop() {
		f.mu.Unlock()
		return
	}
	f.timer = nil
	gen := f.gen
	f.mu.Unlock()
	f.save(ctx, gen)
}

// Close stops any pending write without flushing it.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelSaveLocked()
}

// PaymentPath is where the visitor goes after a booking is created. It
// always carries the booking id, never the display code.
func PaymentPath(bookingID string) string {
	return "/payment?booking_id=" + url.QueryEscape(bookingID)
}

func (f *Form) scheduleSaveLocked() {
	if f.timer != nil {
		f.timer.Stop()
	}
	f.gen++
	gen := f.gen
	f.timer = time.AfterFunc(f.debounce, func() {
		f.save(context.Background(), gen)
	})
}

func (f *Form) cancelSaveLocked() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.gen++
}

func (f *Form) save(ctx context.Context, gen uint64) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	d := f.draft
	f.mu.Unlock()

	err := f.store.Save(ctx, d)
	f.metrics.ObserveDraftWrite(err)
	if err != nil {
		f.logger.Warn("booking draft write failed", "error", err)
	}
}

func (f *Form) clearSlot(ctx context.Context) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if err := f.store.Clear(context.WithoutCancel(ctx)); err != nil {
		f.logger.Warn("booking draft clear failed", "error", err)
	}
}

func (f *Form) signedInLocked() bool {
	if f.session == nil {
		return false
	}
	return f.session.State().User != nil
}

func (f *Form) applySessionEmailLocked() {
	if f.session == nil {
		return
	}
	if u := f.session.State().User; u != nil && u.Email != "" {
		f.draft.CustomerEmail = u.Email
	}
}

func (f *Form) snapshotLocked() Snapshot {
	return Snapshot{
		Status:          f.status,
		Draft:           f.draft,
		Errors:          copyErrs(f.errs),
		Message:         f.message,
		AllowedVehicles: AllowedVehicles(f.draft.Location),
		Booking:         f.booking,
	}
}

func copyErrs(in map[Field]string) map[Field]string {
	out := make(map[Field]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

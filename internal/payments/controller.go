package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/chauffeur-booking/internal/gateway"
	"github.com/wolfman30/chauffeur-booking/internal/money"
	"github.com/wolfman30/chauffeur-booking/internal/observability/metrics"
	"github.com/wolfman30/chauffeur-booking/internal/validation"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

var (
	ErrMissingBookingID = errors.New("payments: booking id required")
	ErrCardIncomplete   = errors.New("payments: card details incomplete")
	ErrNotReady         = errors.New("payments: payment form not ready")
	ErrConfirmInFlight  = errors.New("payments: confirmation already in progress")
	ErrInitSuperseded   = errors.New("payments: superseded by a newer payment page")
)

// State is the payment page lifecycle.
type State string

const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateConfirming   State = "confirming"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
	StateInitFailed   State = "init_failed"
)

// User-facing messages.
const (
	MsgInitFailed     = "We couldn't start your payment. Please go back and try again."
	MsgMissingBooking = "No booking was found for this payment."
	MsgCardIncomplete = "Please complete your card details."
	MsgNotCompleted   = "Your payment was not completed. Please try again."
)

// BackPath is where the failure view links.
const BackPath = "/book"

// Backend is the slice of the booking API the payment page uses.
type Backend interface {
	CreatePaymentIntent(ctx context.Context, bookingID string) (gateway.PaymentIntent, error)
	GetBooking(ctx context.Context, id string) (gateway.Booking, error)
	ConfirmPayment(ctx context.Context, paymentIntentID string) (gateway.PaymentStatus, error)
}

// BillingError lists billing fields that failed validation.
type BillingError struct {
	Fields map[string]string
}

func (e *BillingError) Error() string {
	return fmt.Sprintf("payments: %d invalid billing fields", len(e.Fields))
}

// Outcome separates the card authorization, which decides what the visitor
// sees, from the follow-up notification to the backend. NotifyErr never
// turns a success into a failure.
type Outcome struct {
	Intent    ConfirmedIntent
	NotifyErr error
}

// SuccessView is the receipt shown after payment.
type SuccessView struct {
	BookingCode     string `json:"booking_code,omitempty"`
	Amount          string `json:"amount"`
	PaymentIntentID string `json:"payment_intent_id"`
	Status          string `json:"status"`
}

// View is what the payment page renders. The card form is shown only in
// ready, confirming and failed.
type View struct {
	State     State        `json:"state"`
	BookingID string       `json:"booking_id,omitempty"`
	Amount    string       `json:"amount,omitempty"`
	Message   string       `json:"message,omitempty"`
	ShowCard  bool         `json:"show_card_form"`
	BackPath  string       `json:"back_path,omitempty"`
	Success   *SuccessView `json:"success,omitempty"`
}

// Controller drives one visitor's payment page.
type Controller struct {
	backend   Backend
	confirmer CardConfirmer
	metrics   *metrics.WorkflowMetrics
	logger    *logging.Logger
	tracer    trace.Tracer

	mu        sync.Mutex
	gen       uint64
	state     State
	bookingID string
	intent    *gateway.PaymentIntent
	booking   *gateway.Booking
	message   string
	success   *SuccessView
}

// NewController creates a controller in the initializing state.
func NewController(backend Backend, confirmer CardConfirmer, m *metrics.WorkflowMetrics, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		backend:   backend,
		confirmer: confirmer,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("chauffeur.internal.payments"),
		state:     StateInitializing,
	}
}

// Init creates the payment intent for bookingID. Re-initializing the same
// booking keeps the existing intent.
func (c *Controller) Init(ctx context.Context, bookingID string) (View, error) {
	bookingID = strings.TrimSpace(bookingID)

	c.mu.Lock()
	if bookingID == "" {
		c.state = StateInitFailed
		c.message = MsgMissingBooking
		v := c.viewLocked()
		c.mu.Unlock()
		return v, ErrMissingBookingID
	}
	if c.bookingID == bookingID && c.intent != nil && c.state != StateInitFailed {
		v := c.viewLocked()
		c.mu.Unlock()
		return v, nil
	}
	if c.state == StateConfirming {
		c.mu.Unlock()
		return View{}, ErrConfirmInFlight
	}
	c.gen++
	gen := c.gen
	c.state = StateInitializing
	c.bookingID = bookingID
	c.intent = nil
	c.booking = nil
	c.success = nil
	c.message = ""
	c.mu.Unlock()

	intent, err := c.backend.CreatePaymentIntent(ctx, bookingID)
	if err != nil {
		c.logger.Warn("payment intent creation failed", "booking_id", bookingID, "error", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return c.viewLocked(), ErrInitSuperseded
		}
		c.state = StateInitFailed
		switch msg := gateway.ErrorMessage(err); {
		case gateway.IsNotFound(err):
			c.message = MsgMissingBooking
		case msg != "":
			c.message = msg
		default:
			c.message = MsgInitFailed
		}
		return c.viewLocked(), err
	}

	// The booking summary only decorates the receipt.
	var booking *gateway.Booking
	if b, err := c.backend.GetBooking(ctx, bookingID); err != nil {
		c.logger.Warn("booking summary unavailable", "booking_id", bookingID, "error", err)
	} else {
		booking = &b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A later Init owns the page now; its intent must not be replaced.
	if c.gen != gen {
		c.logger.Info("discarding superseded payment intent", "booking_id", bookingID, "payment_intent_id", intent.ID)
		return c.viewLocked(), ErrInitSuperseded
	}
	c.intent = &intent
	c.booking = booking
	c.state = StateReady
	return c.viewLocked(), nil
}

// Confirm authorizes the card. Allowed from ready, and again from failed
// when the visitor retries.
func (c *Controller) Confirm(ctx context.Context, card CardInput, billing BillingDetails) (Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "payments.confirm")
	defer span.End()

	c.mu.Lock()
	switch c.state {
	case StateReady, StateFailed:
	case StateConfirming:
		c.mu.Unlock()
		return Outcome{}, ErrConfirmInFlight
	default:
		c.mu.Unlock()
		return Outcome{}, ErrNotReady
	}
	if !card.Complete || strings.TrimSpace(card.Token) == "" {
		c.message = MsgCardIncomplete
		c.mu.Unlock()
		return Outcome{}, ErrCardIncomplete
	}
	if errs := validateBilling(billing); len(errs) > 0 {
		c.message = "Please correct the errors below."
		c.mu.Unlock()
		return Outcome{}, &BillingError{Fields: errs}
	}
	intent := *c.intent
	c.state = StateConfirming
	c.message = ""
	c.mu.Unlock()

	span.SetAttributes(attribute.String("chauffeur.payment_intent_id", intent.ID))

	confirmed, err := c.confirmer.ConfirmCardPayment(ctx, intent.ClientSecret, card, billing)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(CardErrorMessage(err), "declined")
		return Outcome{}, err
	}
	switch confirmed.Status {
	case "succeeded", "processing":
	case "requires_action":
		c.fail(MsgAuthentication, "requires_action")
		return Outcome{Intent: confirmed}, &CardError{Code: "authentication_required", Message: MsgAuthentication}
	default:
		c.fail(MsgNotCompleted, "incomplete")
		return Outcome{Intent: confirmed}, fmt.Errorf("payments: intent %s ended in status %s", confirmed.ID, confirmed.Status)
	}

	out := Outcome{Intent: confirmed}
	if confirmed.ID == "" {
		out.Intent.ID = intent.ID
	}
	if _, err := c.backend.ConfirmPayment(ctx, out.Intent.ID); err != nil {
		c.logger.Warn("backend payment confirmation failed", "payment_intent_id", out.Intent.ID, "error", err)
		out.NotifyErr = err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateSucceeded
	c.success = c.successViewLocked(out.Intent)
	c.metrics.ObservePaymentConfirmation("succeeded")
	c.logger.Info("payment confirmed", "booking_id", c.bookingID, "payment_intent_id", out.Intent.ID)
	return out, nil
}

// View returns the current page state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) fail(msg, outcome string) {
	c.mu.Lock()
	c.state = StateFailed
	c.message = msg
	c.mu.Unlock()
	c.metrics.ObservePaymentConfirmation(outcome)
}

func (c *Controller) successViewLocked(confirmed ConfirmedIntent) *SuccessView {
	amount, currency := confirmed.Amount, confirmed.Currency
	if c.intent != nil && amount == 0 {
		amount, currency = c.intent.Amount, c.intent.Currency
	}
	v := &SuccessView{
		Amount:          money.FormatCents(amount, currency),
		PaymentIntentID: confirmed.ID,
		Status:          confirmed.Status,
	}
	if c.booking != nil {
		v.BookingCode = c.booking.BookingCode
	}
	return v
}

func (c *Controller) viewLocked() View {
	v := View{
		State:     c.state,
		BookingID: c.bookingID,
		Message:   c.message,
		Success:   c.success,
	}
	if c.intent != nil {
		v.Amount = money.FormatCents(c.intent.Amount, c.intent.Currency)
	}
	switch c.state {
	case StateReady, StateConfirming, StateFailed:
		v.ShowCard = true
	case StateInitFailed:
		v.BackPath = BackPath
	}
	return v
}

func validateBilling(b BillingDetails) map[string]string {
	errs := map[string]string{}
	if !validation.Required(b.Name) {
		errs["name"] = validation.MsgRequired
	}
	switch {
	case !validation.Required(b.Email):
		errs["email"] = validation.MsgRequired
	case !validation.Email(b.Email):
		errs["email"] = validation.MsgEmail
	}
	if b.Phone != "" && !validation.Phone(b.Phone) {
		errs["phone"] = validation.MsgPhone
	}
	if c := strings.TrimSpace(b.Address.Country); c != "" && len(c) != 2 {
		errs["address.country"] = "Please use a two-letter country code"
	}
	return errs
}

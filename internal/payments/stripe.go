package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

var stripeTracer = otel.Tracer("chauffeur.internal.payments.stripe")

// CardInput is what the card element reports: whether every card field is
// filled and the single-use token the payment SDK minted for it. Raw card
// numbers never reach this service.
type CardInput struct {
	Complete bool   `json:"complete"`
	Token    string `json:"token"`
}

// BillingDetails accompany the card on confirmation.
type BillingDetails struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Phone   string         `json:"phone,omitempty"`
	Address BillingAddress `json:"address"`
}

// BillingAddress is the cardholder's postal address. Every part is
// optional; the card network decides which ones it checks.
type BillingAddress struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

func (a BillingAddress) formFields() [][2]string {
	return [][2]string{
		{"line1", a.Line1},
		{"line2", a.Line2},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
		{"country", strings.ToUpper(strings.TrimSpace(a.Country))},
	}
}

// ConfirmedIntent is the payment intent as the payment SDK returns it
// after confirmation.
type ConfirmedIntent struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	NextActionType string `json:"next_action_type,omitempty"`
}

// CardConfirmer authorizes a card against a payment intent.
type CardConfirmer interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, card CardInput, billing BillingDetails) (ConfirmedIntent, error)
}

// CardError is a payment SDK rejection.
type CardError struct {
	Type        string
	Code        string
	DeclineCode string
	Message     string
}

func (e *CardError) Error() string {
	code := e.Code
	if e.DeclineCode != "" {
		code += "/" + e.DeclineCode
	}
	return fmt.Sprintf("payments: card error %s: %s", code, e.Message)
}

var declineMessages = map[string]string{
	"insufficient_funds":     "Your card has insufficient funds.",
	"lost_card":              "Your card was declined.",
	"stolen_card":            "Your card was declined.",
	"generic_decline":        "Your card was declined.",
	"do_not_honor":           "Your card was declined. Please contact your bank.",
	"card_velocity_exceeded": "Your card has exceeded its limit. Please try another card.",
}

var cardMessages = map[string]string{
	"card_declined":                         "Your card was declined.",
	"expired_card":                          "Your card has expired.",
	"incorrect_cvc":                         "Your card's security code is incorrect.",
	"invalid_cvc":                           "Your card's security code is invalid.",
	"incorrect_number":                      "Your card number is incorrect.",
	"invalid_number":                        "Your card number is invalid.",
	"invalid_expiry_month":                  "Your card's expiration month is invalid.",
	"invalid_expiry_year":                   "Your card's expiration year is invalid.",
	"incorrect_zip":                         "Your postal code is incorrect.",
	"processing_error":                      "An error occurred while processing your card. Please try again.",
	"authentication_required":               MsgAuthentication,
	"payment_intent_authentication_failure": MsgAuthentication,
	"payment_intent_unexpected_state":       "This payment can no longer be completed. Please refresh and try again.",
	"token_already_used":                    "Please re-enter your card details.",
	"resource_missing":                      "Please re-enter your card details.",
}

// MsgAuthentication is shown when the bank requires a step this flow
// cannot complete.
const MsgAuthentication = "Your bank requires additional authentication. Please try another card or contact your bank."

// MsgPaymentFailed is the fallback for failures without a better sentence.
const MsgPaymentFailed = "We couldn't process your payment. Please try again."

// CardErrorMessage maps a confirmation failure to a user-facing sentence.
func CardErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var cardErr *CardError
	if !errors.As(err, &cardErr) {
		return MsgPaymentFailed
	}
	if msg, ok := declineMessages[cardErr.DeclineCode]; ok {
		return msg
	}
	if msg, ok := cardMessages[cardErr.Code]; ok {
		return msg
	}
	if cardErr.Type == "card_error" && cardErr.Message != "" {
		return cardErr.Message
	}
	return MsgPaymentFailed
}

// StripeConfirmer confirms payment intents the way Stripe.js does, with
// the publishable key and the intent's client secret.
type StripeConfirmer struct {
	publishableKey string
	baseURL        string
	apiVersion     string
	httpClient     *http.Client
	logger         *logging.Logger
	dryRun         bool
}

// NewStripeConfirmer creates a confirmer for the given publishable key.
func NewStripeConfirmer(publishableKey string, logger *logging.Logger) *StripeConfirmer {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeConfirmer{
		publishableKey: publishableKey,
		baseURL:        "https://api.stripe.com",
		apiVersion:     "2024-12-18.acacia",
		httpClient:     &http.Client{},
		logger:         logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *StripeConfirmer) WithBaseURL(baseURL string) *StripeConfirmer {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithDryRun makes every confirmation succeed without calling Stripe.
func (s *StripeConfirmer) WithDryRun(enabled bool) *StripeConfirmer {
	s.dryRun = enabled
	return s
}

// IntentIDFromSecret extracts pi_xxx from pi_xxx_secret_yyy.
func IntentIDFromSecret(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || !strings.HasPrefix(id, "pi_") {
		return "", fmt.Errorf("payments: malformed client secret")
	}
	return id, nil
}

// ConfirmCardPayment implements CardConfirmer.
func (s *StripeConfirmer) ConfirmCardPayment(ctx context.Context, clientSecret string, card CardInput, billing BillingDetails) (ConfirmedIntent, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.confirm_payment_intent")
	defer span.End()

	intentID, err := IntentIDFromSecret(clientSecret)
	if err != nil {
		return ConfirmedIntent{}, err
	}
	span.SetAttributes(attribute.String("chauffeur.payment_intent_id", intentID))

	if s.dryRun {
		s.logger.Info("stripe dry run: skipping card confirmation", "payment_intent_id", intentID)
		return ConfirmedIntent{ID: intentID, Status: "succeeded", Currency: "usd"}, nil
	}

	form := url.Values{}
	form.Set("client_secret", clientSecret)
	form.Set("payment_method_data[type]", "card")
	form.Set("payment_method_data[card][token]", card.Token)
	form.Set("payment_method_data[billing_details][name]", strings.TrimSpace(billing.Name))
	form.Set("payment_method_data[billing_details][email]", strings.TrimSpace(billing.Email))
	if phone := strings.TrimSpace(billing.Phone); phone != "" {
		form.Set("payment_method_data[billing_details][phone]", phone)
	}
	for _, kv := range billing.Address.formFields() {
		if v := strings.TrimSpace(kv[1]); v != "" {
			form.Set("payment_method_data[billing_details][address]["+kv[0]+"]", v)
		}
	}

	apiURL := s.baseURL + "/v1/payment_intents/" + url.PathEscape(intentID) + "/confirm"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return ConfirmedIntent{}, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.publishableKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ConfirmedIntent{}, fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return ConfirmedIntent{}, readStripeError(resp)
	}

	var parsed stripePaymentIntent
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ConfirmedIntent{}, fmt.Errorf("payments: stripe decode: %w", err)
	}
	if parsed.LastPaymentError != nil && parsed.Status == "requires_payment_method" {
		return ConfirmedIntent{}, parsed.LastPaymentError.cardError()
	}
	out := ConfirmedIntent{
		ID:       parsed.ID,
		Status:   parsed.Status,
		Amount:   parsed.Amount,
		Currency: parsed.Currency,
	}
	if parsed.NextAction != nil {
		out.NextActionType = parsed.NextAction.Type
	}
	return out, nil
}

// stripePaymentIntent is the subset of Stripe's PaymentIntent we need.
type stripePaymentIntent struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	NextAction *struct {
		Type string `json:"type"`
	} `json:"next_action"`
	LastPaymentError *stripeError `json:"last_payment_error"`
}

type stripeError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

func (e *stripeError) cardError() *CardError {
	return &CardError{Type: e.Type, Code: e.Code, DeclineCode: e.DeclineCode, Message: e.Message}
}

// stripeErrorResponse represents a Stripe API error.
type stripeErrorResponse struct {
	Error stripeError `json:"error"`
}

func readStripeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var parsed stripeErrorResponse
	if err := json.Unmarshal(data, &parsed); err != nil || (parsed.Error.Code == "" && parsed.Error.Message == "") {
		return fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, string(data))
	}
	return parsed.Error.cardError()
}

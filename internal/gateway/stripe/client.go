package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Metadata keys attached to every Checkout Session.
const (
	MetadataBookingID     = "booking_id"
	MetadataTransactionID = "transaction_id"
)

// Config holds Stripe credentials and redirect targets.
type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Client creates Checkout Sessions and authenticates webhooks.
type Client struct {
	config Config
}

// NewClient creates a new Stripe client.
func NewClient(config Config) (*Client, error) {
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret is required")
	}

	// Set Stripe API key globally
	stripego.Key = config.SecretKey

	return &Client{config: config}, nil
}

// CheckoutRequest describes one hosted payment page.
type CheckoutRequest struct {
	BookingID     string
	TransactionID string
	Description   string
	Currency      string
	AmountCents   int64
	CustomerEmail string
}

// CheckoutSession is the part of the created session the caller needs.
type CheckoutSession struct {
	ID  string
	URL string
}

// zeroDecimal lists the currencies Stripe charges in whole units.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// threeDecimal lists the currencies Stripe charges in thousandths.
var threeDecimal = map[string]bool{
	"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
}

// ToStripeAmount converts hundredths of currency into Stripe's smallest unit.
func ToStripeAmount(cents int64, currency string) int64 {
	cur := strings.ToLower(currency)
	switch {
	case zeroDecimal[cur]:
		return (cents + 50) / 100
	case threeDecimal[cur]:
		return cents * 10
	default:
		return cents
	}
}

// FromStripeAmount converts Stripe's smallest unit back into hundredths of currency.
func FromStripeAmount(amount int64, currency string) int64 {
	cur := strings.ToLower(currency)
	switch {
	case zeroDecimal[cur]:
		return amount * 100
	case threeDecimal[cur]:
		return amount / 10
	default:
		return amount
	}
}

// CreateCheckoutSession opens a Checkout Session for a single booking.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params, err := c.checkoutParams(req)
	if err != nil {
		return nil, err
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) checkoutParams(req CheckoutRequest) (*stripego.CheckoutSessionParams, error) {
	unitAmount := ToStripeAmount(req.AmountCents, req.Currency)
	if unitAmount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL:        stripego.String(withBookingID(c.config.SuccessURL, req.BookingID)),
		CancelURL:         stripego.String(withBookingID(c.config.CancelURL, req.BookingID)),
		ClientReferenceID: stripego.String(req.BookingID),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripego.String(strings.ToLower(req.Currency)),
					UnitAmount: stripego.Int64(unitAmount),
					ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripego.String(req.Description),
					},
				},
				Quantity: stripego.Int64(1),
			},
		},
		Metadata: map[string]string{
			MetadataBookingID:     req.BookingID,
			MetadataTransactionID: req.TransactionID,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(req.CustomerEmail)
	}
	return params, nil
}

// Webhook event types this service reacts to.
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutAsyncPaymentOK     = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	EventCheckoutExpired            = "checkout.session.expired"
)

// ErrIgnoredEvent is returned for authentic events that carry no payment outcome.
var ErrIgnoredEvent = errors.New("stripe event ignored")

// WebhookEvent is the settlement-relevant view of a verified Checkout webhook.
type WebhookEvent struct {
	Type            string
	BookingID       string
	TransactionID   string
	PaymentIntentID string
	// AmountCents is the charged total in hundredths of currency.
	AmountCents     int64
	Paid            bool
	FailureMessage  string
	Raw             json.RawMessage
}

// ErrInvalidSignature is returned when the Stripe-Signature header does not match the payload.
var ErrInvalidSignature = errors.New("stripe webhook signature verification failed")

// ParseWebhook verifies the Stripe-Signature header and decodes Checkout events.
func (c *Client) ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	eventType := string(event.Type)
	switch eventType {
	case EventCheckoutCompleted, EventCheckoutAsyncPaymentOK, EventCheckoutAsyncPaymentFailed, EventCheckoutExpired:
	default:
		return nil, ErrIgnoredEvent
	}

	var cs stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	out := &WebhookEvent{
		Type:          eventType,
		BookingID:     cs.Metadata[MetadataBookingID],
		TransactionID: cs.Metadata[MetadataTransactionID],
		AmountCents:   FromStripeAmount(cs.AmountTotal, string(cs.Currency)),
		Raw:           json.RawMessage(event.Data.Raw),
	}
	if out.BookingID == "" {
		out.BookingID = cs.ClientReferenceID
	}
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}

	switch eventType {
	case EventCheckoutCompleted:
		out.Paid = cs.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid
		if !out.Paid {
			// Delayed methods complete later through async_payment_succeeded.
			return nil, ErrIgnoredEvent
		}
	case EventCheckoutAsyncPaymentOK:
		out.Paid = true
	case EventCheckoutAsyncPaymentFailed:
		out.FailureMessage = "Asynchronous payment failed"
	case EventCheckoutExpired:
		out.FailureMessage = "Checkout session expired before payment"
	}
	return out, nil
}

func withBookingID(base, bookingID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "id=" + bookingID
}

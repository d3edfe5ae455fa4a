package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/gateway/stripe"
	"github.com/motobiketours/service-booking/internal/gateway/vnpay"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/motobiketours/service-booking/internal/application")

// failSpan records err on span and returns it unchanged.
func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Requester identifies who is calling a use case.
type Requester struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Notifier sends customer-facing messages. Every call is best-effort: callers
// log failures and never roll back the state change that triggered them.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, booking BookingDTO) error
	SendBookingCancellation(ctx context.Context, booking BookingDTO) error
	SendPaymentSuccess(ctx context.Context, booking BookingDTO) error
}

// InvoiceRenderer turns a booking into a printable document.
type InvoiceRenderer interface {
	Render(booking BookingDTO) ([]byte, error)
}

// Transactor runs fn inside one database transaction. Repositories called
// with the ctx passed to fn take part in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// VNPayGateway signs outbound payment URLs and authenticates callbacks.
type VNPayGateway interface {
	CreatePaymentURL(bookingID string, amountCents int64, orderInfo, clientIP string) (string, error)
	VerifyCallback(params map[string]string) bool
	ParseResponseCode(code string) vnpay.ResponseStatus
}

// StripeGateway opens hosted checkout pages and authenticates webhooks.
type StripeGateway interface {
	CreateCheckoutSession(ctx context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error)
	ParseWebhook(payload []byte, signatureHeader string) (*stripe.WebhookEvent, error)
}

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

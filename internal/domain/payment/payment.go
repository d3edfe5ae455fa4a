package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/domain"
)

// Status is the outcome of one payment attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// IsResolved returns true once the attempt has succeeded or failed.
func (s Status) IsResolved() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusSuccess, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid payment status: %s", s)
}

// Payment is one attempt to settle a booking. A booking may own many.
type Payment struct {
	id              uuid.UUID
	bookingID       uuid.UUID
	amountCents     int64
	currency        string
	method          Method
	transactionID   string
	gatewayTxnNo    string
	status          Status
	gatewayResponse json.RawMessage
	errorMessage    string
	resolvedAt      *time.Time
	createdAt       time.Time
	updatedAt       time.Time
}

// NewTransactionID derives the local transaction id for an attempt on the given booking.
func NewTransactionID(bookingID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("%s_%d", bookingID, now.UnixMilli())
}

// NewPayment creates a pending payment attempt.
func NewPayment(
	bookingID uuid.UUID,
	amountCents int64,
	currency string,
	method Method,
	transactionID string,
	now time.Time,
) (*Payment, error) {
	if bookingID == uuid.Nil {
		return nil, domain.NewValidationError("booking ID is required")
	}
	if amountCents <= 0 {
		return nil, domain.NewValidationError("payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid payment method: %s", method))
	}
	if transactionID == "" {
		return nil, domain.NewValidationError("transaction ID is required")
	}

	now = now.UTC()
	return &Payment{
		id:            uuid.New(),
		bookingID:     bookingID,
		amountCents:   amountCents,
		currency:      currency,
		method:        method,
		transactionID: transactionID,
		status:        StatusPending,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructPayment rebuilds a Payment from persistence data (no validation).
func ReconstructPayment(
	id uuid.UUID,
	bookingID uuid.UUID,
	amountCents int64,
	currency string,
	method Method,
	transactionID string,
	gatewayTxnNo string,
	status Status,
	gatewayResponse json.RawMessage,
	errorMessage string,
	resolvedAt *time.Time,
	createdAt time.Time,
	updatedAt time.Time,
) *Payment {
	return &Payment{
		id:              id,
		bookingID:       bookingID,
		amountCents:     amountCents,
		currency:        currency,
		method:          method,
		transactionID:   transactionID,
		gatewayTxnNo:    gatewayTxnNo,
		status:          status,
		gatewayResponse: gatewayResponse,
		errorMessage:    errorMessage,
		resolvedAt:      resolvedAt,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

func (p *Payment) ID() uuid.UUID                    { return p.id }
func (p *Payment) BookingID() uuid.UUID             { return p.bookingID }
func (p *Payment) AmountCents() int64               { return p.amountCents }
func (p *Payment) Currency() string                 { return p.currency }
func (p *Payment) Method() Method                   { return p.method }
func (p *Payment) TransactionID() string            { return p.transactionID }
func (p *Payment) GatewayTxnNo() string             { return p.gatewayTxnNo }
func (p *Payment) Status() Status                   { return p.status }
func (p *Payment) GatewayResponse() json.RawMessage { return p.gatewayResponse }
func (p *Payment) ErrorMessage() string             { return p.errorMessage }
func (p *Payment) ResolvedAt() *time.Time           { return p.resolvedAt }
func (p *Payment) CreatedAt() time.Time             { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time             { return p.updatedAt }

// Succeed resolves a pending attempt as paid. Resolved attempts are immutable.
func (p *Payment) Succeed(gatewayTxnNo string, raw json.RawMessage, now time.Time) error {
	if err := p.ensurePending(); err != nil {
		return err
	}
	p.resolve(StatusSuccess, raw, now)
	p.gatewayTxnNo = gatewayTxnNo
	return nil
}

// Fail resolves a pending attempt as failed with the gateway's reason.
func (p *Payment) Fail(raw json.RawMessage, message string, now time.Time) error {
	if err := p.ensurePending(); err != nil {
		return err
	}
	p.resolve(StatusFailed, raw, now)
	p.errorMessage = message
	return nil
}

func (p *Payment) ensurePending() error {
	if p.status != StatusPending {
		return domain.NewInvalidStateError("PAYMENT_ALREADY_RESOLVED",
			fmt.Sprintf("payment %s is already %s", p.id, p.status))
	}
	return nil
}

func (p *Payment) resolve(status Status, raw json.RawMessage, now time.Time) {
	now = now.UTC()
	p.status = status
	p.gatewayResponse = raw
	p.resolvedAt = &now
	p.updatedAt = now
}

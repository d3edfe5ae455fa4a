package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/domain"
	"github.com/motobiketours/service-booking/internal/domain/payment"
)

// Stable error codes surfaced to API clients.
const (
	CodeAlreadyCancelled      = "BOOKING_ALREADY_CANCELLED"
	CodeCompleted             = "BOOKING_COMPLETED"
	CodeCancellationWindow    = "CANCELLATION_WINDOW_CLOSED"
	CodeNotPending            = "BOOKING_NOT_PENDING"
	CodeTerminal              = "BOOKING_TERMINAL"
	CodeAlreadyPaid           = "BOOKING_ALREADY_PAID"
	CodeNotOwner              = "NOT_BOOKING_OWNER"
	CodeStatusChangeForbidden = "STATUS_CHANGE_FORBIDDEN"
	CodeInvalidTransition     = "INVALID_STATUS_TRANSITION"
)

// CustomerInfo is the contact snapshot captured when the booking is made.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

func (c CustomerInfo) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return domain.NewValidationError("customer name is required")
	}
	if !strings.Contains(c.Email, "@") {
		return domain.NewValidationError("customer email is invalid")
	}
	if strings.TrimSpace(c.Phone) == "" {
		return domain.NewValidationError("customer phone is required")
	}
	return nil
}

// Booking is the aggregate root for a customer's reservation of one tour departure.
type Booking struct {
	id             uuid.UUID
	tourID         uuid.UUID
	userID         uuid.UUID
	startDate      time.Time
	numberOfPeople int

	totalPriceCents     int64
	discountAmountCents int64
	amountPaidCents     int64
	currency            string

	paymentMethod   payment.Method
	specialRequests string
	customer        CustomerInfo
	voucherCode     string
	transactionID   string

	status        BookingStatus
	paymentStatus PaymentStatus
	expiresAt     *time.Time
	confirmedAt   *time.Time
	cancelledAt   *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// calendarDate returns the day t falls on in its own location, as midnight UTC.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewBooking creates a new Booking aggregate in pending/unpaid state that
// expires at expiresAt unless it is paid or confirmed first.
func NewBooking(
	userID uuid.UUID,
	tourID uuid.UUID,
	startDate time.Time,
	numberOfPeople int,
	totalPriceCents int64,
	currency string,
	method payment.Method,
	customer CustomerInfo,
	specialRequests string,
	voucherCode string,
	expiresAt time.Time,
	now time.Time,
) (*Booking, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	if tourID == uuid.Nil {
		return nil, domain.NewValidationError("tour ID is required")
	}
	if numberOfPeople < 1 {
		return nil, domain.NewValidationError("number of people must be at least 1")
	}
	if startDate.IsZero() {
		return nil, domain.NewValidationError("start date is required")
	}
	if calendarDate(startDate).Before(calendarDate(now)) {
		return nil, domain.NewValidationError("start date cannot be in the past")
	}
	if totalPriceCents <= 0 {
		return nil, domain.NewValidationError("total price must be positive")
	}
	if !method.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid payment method: %s", method))
	}
	if err := customer.validate(); err != nil {
		return nil, err
	}

	now = now.UTC()
	exp := expiresAt.UTC()
	return &Booking{
		id:              uuid.New(),
		tourID:          tourID,
		userID:          userID,
		startDate:       startDate.UTC(),
		numberOfPeople:  numberOfPeople,
		totalPriceCents: totalPriceCents,
		currency:        currency,
		paymentMethod:   method,
		specialRequests: specialRequests,
		customer:        customer,
		voucherCode:     voucherCode,
		status:          StatusPending,
		paymentStatus:   PaymentUnpaid,
		expiresAt:       &exp,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	tourID uuid.UUID,
	userID uuid.UUID,
	startDate time.Time,
	numberOfPeople int,
	totalPriceCents int64,
	discountAmountCents int64,
	amountPaidCents int64,
	currency string,
	paymentMethod payment.Method,
	specialRequests string,
	customer CustomerInfo,
	voucherCode string,
	transactionID string,
	status BookingStatus,
	paymentStatus PaymentStatus,
	expiresAt *time.Time,
	confirmedAt *time.Time,
	cancelledAt *time.Time,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                  id,
		tourID:              tourID,
		userID:              userID,
		startDate:           startDate,
		numberOfPeople:      numberOfPeople,
		totalPriceCents:     totalPriceCents,
		discountAmountCents: discountAmountCents,
		amountPaidCents:     amountPaidCents,
		currency:            currency,
		paymentMethod:       paymentMethod,
		specialRequests:     specialRequests,
		customer:            customer,
		voucherCode:         voucherCode,
		transactionID:       transactionID,
		status:              status,
		paymentStatus:       paymentStatus,
		expiresAt:           expiresAt,
		confirmedAt:         confirmedAt,
		cancelledAt:         cancelledAt,
		version:             version,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID                 { return b.id }
func (b *Booking) TourID() uuid.UUID             { return b.tourID }
func (b *Booking) UserID() uuid.UUID             { return b.userID }
func (b *Booking) StartDate() time.Time          { return b.startDate }
func (b *Booking) NumberOfPeople() int           { return b.numberOfPeople }
func (b *Booking) TotalPriceCents() int64        { return b.totalPriceCents }
func (b *Booking) DiscountAmountCents() int64    { return b.discountAmountCents }
func (b *Booking) AmountPaidCents() int64        { return b.amountPaidCents }
func (b *Booking) Currency() string              { return b.currency }
func (b *Booking) PaymentMethod() payment.Method { return b.paymentMethod }
func (b *Booking) SpecialRequests() string       { return b.specialRequests }
func (b *Booking) Customer() CustomerInfo        { return b.customer }
func (b *Booking) VoucherCode() string           { return b.voucherCode }
func (b *Booking) TransactionID() string         { return b.transactionID }
func (b *Booking) Status() BookingStatus         { return b.status }
func (b *Booking) PaymentStatus() PaymentStatus  { return b.paymentStatus }
func (b *Booking) ExpiresAt() *time.Time         { return b.expiresAt }
func (b *Booking) ConfirmedAt() *time.Time       { return b.confirmedAt }
func (b *Booking) CancelledAt() *time.Time       { return b.cancelledAt }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

func (b *Booking) CreatedAt() time.Time { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// PayableCents is what a new payment attempt charges.
func (b *Booking) PayableCents() int64 {
	return b.totalPriceCents - b.discountAmountCents
}

// IsOwnedBy reports whether userID made this booking.
func (b *Booking) IsOwnedBy(userID uuid.UUID) bool { return b.userID == userID }

// IsExpired reports whether an unpaid pending hold has lapsed.
func (b *Booking) IsExpired(now time.Time) bool {
	return b.status == StatusPending &&
		b.paymentStatus == PaymentUnpaid &&
		b.expiresAt != nil &&
		b.expiresAt.Before(now)
}

// --- Behavior ---

// Confirm transitions the booking from pending to confirmed.
func (b *Booking) Confirm(now time.Time) error {
	if !b.status.CanTransitionTo(StatusConfirmed) {
		return domain.NewInvalidStateError(CodeNotPending,
			fmt.Sprintf("only pending bookings can be confirmed (current status: %s)", b.status))
	}
	now = now.UTC()
	b.status = StatusConfirmed
	b.confirmedAt = &now
	b.updatedAt = now
	return nil
}

// Cancel cancels the booking. Non-admins may not cancel once fewer than
// cutoff remains before the start date. No refund is issued here.
func (b *Booking) Cancel(now time.Time, isAdmin bool, cutoff time.Duration) error {
	switch b.status {
	case StatusCancelled:
		return domain.NewInvalidStateError(CodeAlreadyCancelled, "booking is already cancelled")
	case StatusCompleted:
		return domain.NewInvalidStateError(CodeCompleted, "completed bookings cannot be cancelled")
	}
	if !isAdmin && b.startDate.Sub(now) < cutoff {
		return domain.NewInvalidStateError(CodeCancellationWindow,
			fmt.Sprintf("bookings cannot be cancelled less than %s before the start date", formatCutoff(cutoff)))
	}
	now = now.UTC()
	b.status = StatusCancelled
	b.cancelledAt = &now
	b.updatedAt = now
	return nil
}

// MarkPaid records a settled gateway payment: the booking becomes confirmed
// and fully paid.
func (b *Booking) MarkPaid(amountCents int64, transactionID string, now time.Time) error {
	if b.status.IsTerminal() {
		return domain.NewInvalidStateError(CodeTerminal,
			fmt.Sprintf("booking is %s and cannot accept payment", b.status))
	}
	if b.paymentStatus == PaymentFullyPaid {
		return domain.NewInvalidStateError(CodeAlreadyPaid, "booking is already fully paid")
	}
	now = now.UTC()
	if b.status == StatusPending {
		b.confirmedAt = &now
	}
	b.status = StatusConfirmed
	b.paymentStatus = PaymentFullyPaid
	b.amountPaidCents = amountCents
	b.transactionID = transactionID
	b.updatedAt = now
	return nil
}

// RecordTransaction remembers the local transaction id of the latest payment attempt.
func (b *Booking) RecordTransaction(transactionID string, now time.Time) {
	b.transactionID = transactionID
	b.updatedAt = now.UTC()
}

// Patch carries an update request. Nil fields are left untouched.
type Patch struct {
	StartDate       *time.Time
	NumberOfPeople  *int
	PaymentMethod   *payment.Method
	Customer        *CustomerInfo
	SpecialRequests *string
	VoucherCode     *string
	TransactionID   *string
	Status          *BookingStatus
	PaymentStatus   *PaymentStatus
}

// TouchesStatus reports whether the patch changes either status field.
func (p Patch) TouchesStatus() bool {
	return p.Status != nil || p.PaymentStatus != nil
}

// ApplyPatch applies the patch verbatim. Status fields are an admin-only
// override; terminal bookings reject every patch. The total price is never
// recomputed.
func (b *Booking) ApplyPatch(p Patch, isAdmin bool, now time.Time) error {
	if p.TouchesStatus() && !isAdmin {
		return domain.NewForbiddenError(CodeStatusChangeForbidden, "only administrators can change booking or payment status")
	}
	if b.status.IsTerminal() {
		return domain.NewInvalidStateError(CodeTerminal,
			fmt.Sprintf("booking is %s and can no longer be modified", b.status))
	}
	if p.NumberOfPeople != nil && *p.NumberOfPeople < 1 {
		return domain.NewValidationError("number of people must be at least 1")
	}
	if p.PaymentMethod != nil && !p.PaymentMethod.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid payment method: %s", *p.PaymentMethod))
	}
	if p.Status != nil && !p.Status.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("unknown booking status: %s", *p.Status))
	}
	if p.Status != nil && *p.Status != b.status && !b.status.CanTransitionTo(*p.Status) {
		return domain.NewInvalidStateError(CodeInvalidTransition,
			fmt.Sprintf("cannot move booking from %s to %s", b.status, *p.Status))
	}
	if p.PaymentStatus != nil && !p.PaymentStatus.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("unknown payment status: %s", *p.PaymentStatus))
	}
	if p.Customer != nil {
		if err := p.Customer.validate(); err != nil {
			return err
		}
	}

	now = now.UTC()
	if p.StartDate != nil {
		b.startDate = p.StartDate.UTC()
	}
	if p.NumberOfPeople != nil {
		b.numberOfPeople = *p.NumberOfPeople
	}
	if p.PaymentMethod != nil {
		b.paymentMethod = *p.PaymentMethod
	}
	if p.Customer != nil {
		b.customer = *p.Customer
	}
	if p.SpecialRequests != nil {
		b.specialRequests = *p.SpecialRequests
	}
	if p.VoucherCode != nil {
		b.voucherCode = *p.VoucherCode
	}
	if p.TransactionID != nil {
		b.transactionID = *p.TransactionID
	}
	if p.Status != nil && *p.Status != b.status {
		b.status = *p.Status
		switch b.status {
		case StatusConfirmed:
			b.confirmedAt = &now
		case StatusCancelled:
			b.cancelledAt = &now
		}
	}
	if p.PaymentStatus != nil {
		b.paymentStatus = *p.PaymentStatus
	}
	b.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}

func formatCutoff(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}

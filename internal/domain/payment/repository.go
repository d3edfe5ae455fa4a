package payment

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRepository defines the persistence contract for Payment aggregates.
type PaymentRepository interface {
	// Save persists a new payment attempt.
	Save(ctx context.Context, payment *Payment) error

	// FindLatestPendingByBooking returns the most recently created pending attempt
	// for the booking, or a NotFound error when there is none.
	FindLatestPendingByBooking(ctx context.Context, bookingID uuid.UUID) (*Payment, error)

	// FindByTransactionID retrieves an attempt by its local transaction id.
	FindByTransactionID(ctx context.Context, transactionID string) (*Payment, error)

	// FindByBooking lists all attempts for a booking, newest first.
	FindByBooking(ctx context.Context, bookingID uuid.UUID) ([]*Payment, error)

	// Resolve persists a success/failed outcome only if the stored row is still
	// pending. A row that was resolved concurrently yields a Conflict error.
	Resolve(ctx context.Context, payment *Payment) error
}

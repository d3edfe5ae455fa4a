package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SortField is a column bookings can be ordered by.
type SortField string

const (
	SortByCreatedAt  SortField = "createdAt"
	SortByStartDate  SortField = "startDate"
	SortByTotalPrice SortField = "totalPrice"
)

// IsValid returns true if the field is sortable.
func (f SortField) IsValid() bool {
	switch f {
	case SortByCreatedAt, SortByStartDate, SortByTotalPrice:
		return true
	}
	return false
}

// ListFilter narrows and orders a booking listing. Zero values mean "any".
type ListFilter struct {
	UserID        *uuid.UUID
	TourID        *uuid.UUID
	Status        *BookingStatus
	PaymentStatus *PaymentStatus
	FromDate      *time.Time
	ToDate        *time.Time
	SortBy        SortField
	Ascending     bool
	Page          int
	Limit         int
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// List retrieves bookings matching the filter with pagination.
	List(ctx context.Context, filter ListFilter) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// FindPendingExpired returns unpaid pending bookings whose hold ended before the given time.
	FindPendingExpired(ctx context.Context, before time.Time) ([]*Booking, error)

	// CancelExpired cancels every unpaid pending booking whose hold ended before
	// the given time in a single conditional update and returns the rows it changed.
	CancelExpired(ctx context.Context, before time.Time) ([]*Booking, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error
}

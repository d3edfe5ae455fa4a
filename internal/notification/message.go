package notification

import (
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/application"
)

// Kind names a customer-facing notification.
type Kind string

const (
	BookingConfirmed Kind = "booking.confirmed"
	BookingCancelled Kind = "booking.cancelled"
	PaymentSucceeded Kind = "payment.succeeded"
)

// IsValid returns true if the kind has a template.
func (k Kind) IsValid() bool {
	_, ok := templates[k]
	return ok
}

// Booking is the snapshot an email is rendered from. It is also the payload
// carried on the notifications topic.
type Booking struct {
	BookingID       uuid.UUID `json:"booking_id"`
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	TourTitle       string    `json:"tour_title"`
	StartDate       time.Time `json:"start_date"`
	NumberOfPeople  int       `json:"number_of_people"`
	TotalPriceCents int64     `json:"total_price_cents"`
	AmountPaidCents int64     `json:"amount_paid_cents"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"payment_status"`
	TransactionID   string    `json:"transaction_id,omitempty"`
}

// FromBookingDTO copies the fields an email needs out of a booking view.
func FromBookingDTO(b application.BookingDTO) Booking {
	title := ""
	if b.Tour != nil {
		title = b.Tour.Title
	}
	return Booking{
		BookingID:       b.ID,
		CustomerName:    b.CustomerInfo.Name,
		CustomerEmail:   b.CustomerInfo.Email,
		TourTitle:       title,
		StartDate:       b.StartDate,
		NumberOfPeople:  b.NumberOfPeople,
		TotalPriceCents: b.TotalPriceCents,
		AmountPaidCents: b.AmountPaidCents,
		Currency:        b.Currency,
		Status:          b.Status,
		PaymentStatus:   b.PaymentStatus,
		TransactionID:   b.TransactionID,
	}
}

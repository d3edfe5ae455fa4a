package notification

import (
	"context"
	"fmt"

	"github.com/motobiketours/service-booking/internal/application"
	"go.uber.org/zap"
)

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// EmailNotifier renders notifications and hands them to a Sender. It serves
// both as the in-process Notifier and as the sink of the notifications topic.
type EmailNotifier struct {
	sender Sender
	logger *zap.Logger
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(sender Sender, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{sender: sender, logger: logger}
}

// Deliver renders the email for kind and sends it to the booking's customer.
func (n *EmailNotifier) Deliver(ctx context.Context, kind Kind, b Booking) error {
	if b.CustomerEmail == "" {
		return fmt.Errorf("booking %s has no customer email", b.BookingID)
	}
	subject, body, err := Render(kind, b)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, b.CustomerEmail, subject, body); err != nil {
		return err
	}

	n.logger.Info("notification delivered",
		zap.String("kind", string(kind)),
		zap.String("booking_id", b.BookingID.String()),
	)
	return nil
}

func (n *EmailNotifier) SendBookingConfirmation(ctx context.Context, b application.BookingDTO) error {
	return n.Deliver(ctx, BookingConfirmed, FromBookingDTO(b))
}

func (n *EmailNotifier) SendBookingCancellation(ctx context.Context, b application.BookingDTO) error {
	return n.Deliver(ctx, BookingCancelled, FromBookingDTO(b))
}

func (n *EmailNotifier) SendPaymentSuccess(ctx context.Context, b application.BookingDTO) error {
	return n.Deliver(ctx, PaymentSucceeded, FromBookingDTO(b))
}

package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/domain"
	bookingDomain "github.com/motobiketours/service-booking/internal/domain/booking"
	"github.com/motobiketours/service-booking/internal/domain/payment"
	"github.com/motobiketours/service-booking/internal/domain/tour"
	"github.com/motobiketours/service-booking/internal/gateway/stripe"
	"github.com/motobiketours/service-booking/internal/gateway/vnpay"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CashNotice is returned instead of a redirect URL for pay-on-tour bookings.
const CashNotice = "Please pay in cash at the start of the tour."

// InitiatePaymentRequest holds the data needed to start a payment attempt.
type InitiatePaymentRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
	Method    string    `json:"payment_method" binding:"required"`
	ClientIP  string    `json:"-"`
}

// InitiatePaymentResult tells the client where to go next.
type InitiatePaymentResult struct {
	BookingID     uuid.UUID `json:"booking_id"`
	Method        string    `json:"payment_method"`
	TransactionID string    `json:"transaction_id"`
	PaymentURL    string    `json:"payment_url,omitempty"`
	Notice        string    `json:"notice,omitempty"`
}

// CallbackResult is the outcome of settling a gateway notification.
type CallbackResult struct {
	Success          bool      `json:"success"`
	BookingID        uuid.UUID `json:"booking_id"`
	Message          string    `json:"message"`
	AlreadyProcessed bool      `json:"already_processed,omitempty"`
	Ignored          bool      `json:"ignored,omitempty"`
}

// PaymentDTO is the response representation of a payment attempt.
type PaymentDTO struct {
	ID            uuid.UUID  `json:"id"`
	BookingID     uuid.UUID  `json:"booking_id"`
	AmountCents   int64      `json:"amount_cents"`
	Currency      string     `json:"currency"`
	Method        string     `json:"payment_method"`
	TransactionID string     `json:"transaction_id"`
	GatewayTxnNo  string     `json:"gateway_transaction_no,omitempty"`
	Status        string     `json:"status"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PaymentService starts payment attempts and settles gateway notifications.
type PaymentService struct {
	bookings bookingDomain.BookingRepository
	payments payment.PaymentRepository
	tours    tour.Catalog
	tx       Transactor
	vnpay    VNPayGateway
	stripe   StripeGateway
	notifier Notifier
	logger   *zap.Logger
	now      Clock
}

// NewPaymentService creates a new PaymentService. stripeGateway may be nil,
// in which case Stripe payments are reported as not implemented.
func NewPaymentService(
	bookings bookingDomain.BookingRepository,
	payments payment.PaymentRepository,
	tours tour.Catalog,
	tx Transactor,
	vnpayGateway VNPayGateway,
	stripeGateway StripeGateway,
	notifier Notifier,
	logger *zap.Logger,
	opts ...Option,
) *PaymentService {
	o := buildOptions(opts)
	return &PaymentService{
		bookings: bookings,
		payments: payments,
		tours:    tours,
		tx:       tx,
		vnpay:    vnpayGateway,
		stripe:   stripeGateway,
		notifier: notifier,
		logger:   logger,
		now:      o.now,
	}
}

// Initiate opens a new payment attempt for a booking. Gateway methods return a
// redirect URL; cash returns a notice.
func (s *PaymentService) Initiate(ctx context.Context, req InitiatePaymentRequest, requester Requester) (*InitiatePaymentResult, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.Initiate")
	defer span.End()

	method, err := payment.ParseMethod(req.Method)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	bk, err := loadAuthorizedBooking(ctx, s.bookings, req.BookingID, requester)
	if err != nil {
		return nil, err
	}

	if bk.Status() == bookingDomain.StatusCancelled {
		return nil, domain.NewInvalidStateError(bookingDomain.CodeAlreadyCancelled, "cannot pay for a cancelled booking")
	}
	if bk.PaymentStatus() == bookingDomain.PaymentFullyPaid {
		return nil, domain.NewInvalidStateError(bookingDomain.CodeAlreadyPaid, "booking is already fully paid")
	}
	if !method.IsIntegrated() || (method == payment.MethodStripe && s.stripe == nil) {
		return nil, domain.NewNotImplementedError(fmt.Sprintf("payment method %s is not supported yet", method))
	}

	now := s.now()
	txnID := payment.NewTransactionID(bk.ID(), now)
	p, err := payment.NewPayment(bk.ID(), bk.PayableCents(), bk.Currency(), method, txnID, now)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("booking.id", bk.ID().String()),
		attribute.String("payment.method", method.String()),
	)

	result := &InitiatePaymentResult{
		BookingID:     bk.ID(),
		Method:        method.String(),
		TransactionID: txnID,
	}

	if !method.IsGateway() {
		if err := s.payments.Save(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to save payment: %w", err)
		}
		result.Notice = CashNotice
		return result, nil
	}

	switch method {
	case payment.MethodVNPay:
		paymentURL, err := s.vnpay.CreatePaymentURL(bk.ID().String(), p.AmountCents(), s.orderInfo(ctx, bk), req.ClientIP)
		if err != nil {
			return nil, fmt.Errorf("failed to build vnpay url: %w", err)
		}
		result.PaymentURL = paymentURL

	case payment.MethodStripe:
		checkout, err := s.stripe.CreateCheckoutSession(ctx, stripe.CheckoutRequest{
			BookingID:     bk.ID().String(),
			TransactionID: txnID,
			Description:   s.orderInfo(ctx, bk),
			Currency:      bk.Currency(),
			AmountCents:   p.AmountCents(),
			CustomerEmail: bk.Customer().Email,
		})
		if err != nil {
			return nil, failSpan(span, domain.NewUpstreamUnavailableError("payment provider is unavailable, please retry", err))
		}
		result.PaymentURL = checkout.URL
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.payments.Save(ctx, p); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		bk.RecordTransaction(txnID, now)
		bk.IncrementVersion()
		return s.bookings.Update(ctx, bk)
	})
	if err != nil {
		return nil, failSpan(span, err)
	}

	s.logger.Info("payment initiated",
		zap.String("booking_id", bk.ID().String()),
		zap.String("transaction_id", txnID),
		zap.String("method", method.String()),
		zap.Int64("amount_cents", p.AmountCents()),
	)
	return result, nil
}

// HandleVNPayCallback authenticates a VNPay return/IPN parameter set and
// settles the booking's latest pending attempt. Replays are harmless.
func (s *PaymentService) HandleVNPayCallback(ctx context.Context, params map[string]string) (*CallbackResult, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.HandleVNPayCallback")
	defer span.End()

	if !s.vnpay.VerifyCallback(params) {
		s.logger.Warn("rejected vnpay callback with invalid signature",
			zap.String("txn_ref", params[vnpay.ParamTxnRef]))
		return nil, failSpan(span, domain.NewInvalidSignatureError("invalid vnpay signature"))
	}

	cb, err := vnpay.ParseCallback(params)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	bookingID, err := uuid.Parse(cb.TxnRef)
	if err != nil {
		return nil, domain.NewValidationError("vnp_TxnRef is not a booking id")
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode callback: %w", err)
	}

	status := s.vnpay.ParseResponseCode(cb.ResponseCode)
	return s.settle(ctx, bookingID, settlement{
		paid:         status.Success,
		message:      status.Message,
		gatewayTxnNo: cb.TransactionNo,
		amountCents:  cb.AmountCents,
		raw:          raw,
	})
}

// HandleStripeWebhook authenticates a Stripe webhook and settles the attempt
// referenced by its metadata.
func (s *PaymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signatureHeader string) (*CallbackResult, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.HandleStripeWebhook")
	defer span.End()

	if s.stripe == nil {
		return nil, domain.NewNotImplementedError("stripe payments are not configured")
	}

	evt, err := s.stripe.ParseWebhook(payload, signatureHeader)
	switch {
	case errors.Is(err, stripe.ErrInvalidSignature):
		s.logger.Warn("rejected stripe webhook with invalid signature")
		return nil, domain.NewInvalidSignatureError("invalid stripe signature")
	case errors.Is(err, stripe.ErrIgnoredEvent):
		return &CallbackResult{Ignored: true, Message: "event ignored"}, nil
	case err != nil:
		return nil, domain.NewValidationError(err.Error())
	}

	bookingID, err := uuid.Parse(evt.BookingID)
	if err != nil {
		return nil, domain.NewValidationError("stripe event does not reference a booking")
	}

	message := evt.FailureMessage
	if evt.Paid {
		message = "Transaction successful"
	}
	return s.settle(ctx, bookingID, settlement{
		paid:          evt.Paid,
		message:       message,
		gatewayTxnNo:  evt.PaymentIntentID,
		amountCents:   evt.AmountCents,
		transactionID: evt.TransactionID,
		raw:           evt.Raw,
	})
}

// GetBookingPayments lists every attempt made for a booking, newest first.
func (s *PaymentService) GetBookingPayments(ctx context.Context, bookingID uuid.UUID, requester Requester) ([]PaymentDTO, error) {
	if _, err := loadAuthorizedBooking(ctx, s.bookings, bookingID, requester); err != nil {
		return nil, err
	}

	payments, err := s.payments.FindByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, nil
}

// settlement is a verified gateway outcome.
type settlement struct {
	paid         bool
	message      string
	gatewayTxnNo string
	// amountCents is what the gateway says was charged; zero when not reported.
	amountCents int64
	// transactionID pins the attempt when the gateway echoes it back.
	transactionID string
	raw           json.RawMessage
}

func (s *PaymentService) settle(ctx context.Context, bookingID uuid.UUID, out settlement) (*CallbackResult, error) {
	result := &CallbackResult{BookingID: bookingID}
	var paidBooking *bookingDomain.Booking

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		bk, err := s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}

		if bk.PaymentStatus() == bookingDomain.PaymentFullyPaid {
			// A late failure for a paid booking changes nothing but is still reported as a failure.
			result.Success = out.paid
			result.AlreadyProcessed = true
			result.Message = "Payment already processed"
			if !out.paid {
				result.Message = out.message
			}
			return nil
		}

		p, err := s.pendingAttempt(ctx, bookingID, out.transactionID)
		if domain.IsNotFound(err) {
			result.AlreadyProcessed = true
			result.Message = "No pending payment for this booking"
			return nil
		}
		if err != nil {
			return err
		}

		now := s.now()
		if !out.paid {
			if err := p.Fail(out.raw, out.message, now); err != nil {
				return err
			}
			result.Message = out.message
			return s.payments.Resolve(ctx, p)
		}

		if out.amountCents > 0 && out.amountCents != p.AmountCents() {
			msg := fmt.Sprintf("Amount mismatch: expected %d, received %d", p.AmountCents(), out.amountCents)
			if err := p.Fail(out.raw, msg, now); err != nil {
				return err
			}
			result.Message = msg
			return s.payments.Resolve(ctx, p)
		}

		if err := p.Succeed(out.gatewayTxnNo, out.raw, now); err != nil {
			return err
		}
		if err := s.payments.Resolve(ctx, p); err != nil {
			return err
		}

		if bk.Status().IsTerminal() {
			s.logger.Warn("payment settled for a booking that is no longer payable",
				zap.String("booking_id", bk.ID().String()),
				zap.String("status", bk.Status().String()),
				zap.String("transaction_id", p.TransactionID()),
			)
			result.Message = fmt.Sprintf("Payment received but booking is %s", bk.Status())
			return nil
		}

		gatewayTxnNo := out.gatewayTxnNo
		if gatewayTxnNo == "" {
			gatewayTxnNo = p.TransactionID()
		}
		if err := bk.MarkPaid(p.AmountCents(), gatewayTxnNo, now); err != nil {
			return err
		}
		bk.IncrementVersion()
		if err := s.bookings.Update(ctx, bk); err != nil {
			return err
		}

		result.Success = true
		result.Message = out.message
		paidBooking = bk
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment callback processed",
		zap.String("booking_id", bookingID.String()),
		zap.Bool("success", result.Success),
		zap.Bool("already_processed", result.AlreadyProcessed),
	)

	if paidBooking != nil && s.notifier != nil {
		dto := describeBooking(ctx, s.tours, s.logger, paidBooking)
		notifyBestEffort(ctx, s.logger, "booking_confirmation", s.notifier.SendBookingConfirmation, dto)
		notifyBestEffort(ctx, s.logger, "payment_success", s.notifier.SendPaymentSuccess, dto)
	}
	return result, nil
}

// pendingAttempt returns the attempt a notification resolves: the one named
// by transactionID when it is still pending, else the latest pending attempt.
func (s *PaymentService) pendingAttempt(ctx context.Context, bookingID uuid.UUID, transactionID string) (*payment.Payment, error) {
	if transactionID != "" {
		p, err := s.payments.FindByTransactionID(ctx, transactionID)
		switch {
		case err == nil && p.BookingID() == bookingID:
			if p.Status() != payment.StatusPending {
				return nil, domain.NewNotFoundError("payment", transactionID)
			}
			return p, nil
		case err != nil && !domain.IsNotFound(err):
			return nil, err
		}
	}
	return s.payments.FindLatestPendingByBooking(ctx, bookingID)
}

func (s *PaymentService) orderInfo(ctx context.Context, bk *bookingDomain.Booking) string {
	t, err := s.tours.FindByID(ctx, bk.TourID())
	if err != nil {
		return fmt.Sprintf("Payment for booking %s", bk.ID())
	}
	return fmt.Sprintf("Payment for booking %s", t.Title)
}

func toPaymentDTO(p *payment.Payment) PaymentDTO {
	return PaymentDTO{
		ID:            p.ID(),
		BookingID:     p.BookingID(),
		AmountCents:   p.AmountCents(),
		Currency:      p.Currency(),
		Method:        p.Method().String(),
		TransactionID: p.TransactionID(),
		GatewayTxnNo:  p.GatewayTxnNo(),
		Status:        string(p.Status()),
		ErrorMessage:  p.ErrorMessage(),
		ResolvedAt:    p.ResolvedAt(),
		CreatedAt:     p.CreatedAt(),
	}
}

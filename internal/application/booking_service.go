package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/domain"
	bookingDomain "github.com/motobiketours/service-booking/internal/domain/booking"
	"github.com/motobiketours/service-booking/internal/domain/payment"
	"github.com/motobiketours/service-booking/internal/domain/tour"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	TourID          uuid.UUID                  `json:"tour_id" binding:"required"`
	StartDate       string                     `json:"start_date" binding:"required"`
	NumberOfPeople  int                        `json:"number_of_people"`
	PaymentMethod   string                     `json:"payment_method" binding:"required"`
	CustomerInfo    bookingDomain.CustomerInfo `json:"customer_info" binding:"required"`
	SpecialRequests string                     `json:"special_requests"`
	VoucherCode     string                     `json:"voucher_code"`
}

// UpdateBookingRequest is a partial update. Absent fields are left untouched.
type UpdateBookingRequest struct {
	StartDate       *string                     `json:"start_date"`
	NumberOfPeople  *int                        `json:"number_of_people"`
	PaymentMethod   *string                     `json:"payment_method"`
	CustomerInfo    *bookingDomain.CustomerInfo `json:"customer_info"`
	SpecialRequests *string                     `json:"special_requests"`
	VoucherCode     *string                     `json:"voucher_code"`
	TransactionID   *string                     `json:"transaction_id"`
	Status          *string                     `json:"status"`
	PaymentStatus   *string                     `json:"payment_status"`
}

// ListBookingsQuery holds the filter, sort and paging options of a listing.
type ListBookingsQuery struct {
	Status        string `form:"status"`
	PaymentStatus string `form:"payment_status"`
	UserID        string `form:"user_id"`
	TourID        string `form:"tour_id"`
	FromDate      string `form:"from_date"`
	ToDate        string `form:"to_date"`
	SortBy        string `form:"sort_by"`
	SortOrder     string `form:"sort_order"`
	Page          int    `form:"page"`
	Limit         int    `form:"limit"`
}

// TourSummaryDTO is the tour snapshot embedded in booking responses.
type TourSummaryDTO struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                  uuid.UUID                  `json:"id"`
	TourID              uuid.UUID                  `json:"tour_id"`
	Tour                *TourSummaryDTO            `json:"tour,omitempty"`
	UserID              uuid.UUID                  `json:"user_id"`
	StartDate           time.Time                  `json:"start_date"`
	NumberOfPeople      int                        `json:"number_of_people"`
	TotalPriceCents     int64                      `json:"total_price_cents"`
	DiscountAmountCents int64                      `json:"discount_amount_cents"`
	AmountPaidCents     int64                      `json:"amount_paid_cents"`
	Currency            string                     `json:"currency"`
	PaymentMethod       string                     `json:"payment_method"`
	SpecialRequests     string                     `json:"special_requests,omitempty"`
	CustomerInfo        bookingDomain.CustomerInfo `json:"customer_info"`
	VoucherCode         string                     `json:"voucher_code,omitempty"`
	TransactionID       string                     `json:"transaction_id,omitempty"`
	Status              string                     `json:"status"`
	PaymentStatus       string                     `json:"payment_status"`
	ExpiresAt           *time.Time                 `json:"expires_at,omitempty"`
	ConfirmedAt         *time.Time                 `json:"confirmed_at,omitempty"`
	CancelledAt         *time.Time                 `json:"cancelled_at,omitempty"`
	Version             int64                      `json:"version"`
	CreatedAt           time.Time                  `json:"created_at"`
	UpdatedAt           time.Time                  `json:"updated_at"`
}

// BookingPolicy holds the time-based rules of the booking lifecycle.
type BookingPolicy struct {
	// HoldTTL is how long an unpaid pending booking is held before the sweep cancels it.
	HoldTTL time.Duration
	// CancellationCutoff is the minimum lead time before the start date for a customer cancellation.
	CancellationCutoff time.Duration
}

// DefaultBookingPolicy returns a 30 minute hold and a 24 hour cancellation cutoff.
func DefaultBookingPolicy() BookingPolicy {
	return BookingPolicy{
		HoldTTL:            30 * time.Minute,
		CancellationCutoff: 24 * time.Hour,
	}
}

// Option customises a service.
type Option func(*serviceOptions)

type serviceOptions struct {
	now Clock
}

// WithClock overrides the time source.
func WithClock(now Clock) Option {
	return func(o *serviceOptions) { o.now = now }
}

func buildOptions(opts []Option) serviceOptions {
	o := serviceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo     bookingDomain.BookingRepository
	tours    tour.Catalog
	pricing  bookingDomain.PricingStrategy
	notifier Notifier
	invoices InvoiceRenderer
	policy   BookingPolicy
	logger   *zap.Logger
	now      Clock
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	tours tour.Catalog,
	pricing bookingDomain.PricingStrategy,
	notifier Notifier,
	invoices InvoiceRenderer,
	policy BookingPolicy,
	logger *zap.Logger,
	opts ...Option,
) *BookingService {
	o := buildOptions(opts)
	return &BookingService{
		repo:     repo,
		tours:    tours,
		pricing:  pricing,
		notifier: notifier,
		invoices: invoices,
		policy:   policy,
		logger:   logger,
		now:      o.now,
	}
}

// CreateBooking prices and persists a pending, unpaid booking for the user.
func (s *BookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.CreateBooking")
	defer span.End()

	t, err := s.tours.FindByID(ctx, req.TourID)
	if err != nil {
		return nil, err
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid start date: %v", err))
	}

	method, err := payment.ParseMethod(req.PaymentMethod)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	totalCents, err := s.pricing.Calculate(bookingDomain.PricingParams{
		UnitPriceCents: t.PriceCents,
		NumberOfPeople: req.NumberOfPeople,
		VoucherCode:    req.VoucherCode,
	})
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("pricing error: %v", err))
	}

	now := s.now()
	bk, err := bookingDomain.NewBooking(
		userID,
		t.ID,
		startDate,
		req.NumberOfPeople,
		totalCents,
		t.Currency,
		method,
		req.CustomerInfo,
		req.SpecialRequests,
		req.VoucherCode,
		now.Add(s.policy.HoldTTL),
		now,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	span.SetAttributes(attribute.String("booking.id", bk.ID().String()))
	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("tour_id", t.ID.String()),
		zap.Int64("total_price_cents", totalCents),
	)

	result := toBookingDTO(bk).withTour(t)
	return &result, nil
}

// GetBookingDetail returns a booking the requester owns, or any booking for admins.
func (s *BookingService) GetBookingDetail(ctx context.Context, bookingID uuid.UUID, requester Requester) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.GetBookingDetail")
	defer span.End()

	bk, err := s.loadAuthorized(ctx, bookingID, requester)
	if err != nil {
		return nil, err
	}
	result := s.describe(ctx, bk)
	return &result, nil
}

// UpdateBooking applies a partial update. Status fields are admin-only and
// terminal bookings cannot be updated.
func (s *BookingService) UpdateBooking(ctx context.Context, bookingID uuid.UUID, req UpdateBookingRequest, requester Requester) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.UpdateBooking")
	defer span.End()

	bk, err := s.loadAuthorized(ctx, bookingID, requester)
	if err != nil {
		return nil, err
	}

	patch, err := req.toPatch()
	if err != nil {
		return nil, err
	}

	if err := bk.ApplyPatch(patch, requester.IsAdmin, s.now()); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	result := toBookingDTO(bk)
	return &result, nil
}

// CancelBooking cancels a booking. Customers must cancel at least the policy
// cutoff before departure; admins are exempt. Refunds are not issued here.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, requester Requester) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.CancelBooking")
	defer span.End()

	bk, err := s.loadAuthorized(ctx, bookingID, requester)
	if err != nil {
		return nil, err
	}

	if err := bk.Cancel(s.now(), requester.IsAdmin, s.policy.CancellationCutoff); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", bk.ID().String()),
		zap.Bool("by_admin", requester.IsAdmin),
	)

	result := s.describe(ctx, bk)
	if s.notifier != nil {
		notifyBestEffort(ctx, s.logger, "booking_cancellation", s.notifier.SendBookingCancellation, result)
	}
	return &result, nil
}

// ConfirmBooking moves a pending booking to confirmed (admin).
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.ConfirmBooking")
	defer span.End()

	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := bk.Confirm(s.now()); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	result := s.describe(ctx, bk)
	if s.notifier != nil {
		notifyBestEffort(ctx, s.logger, "booking_confirmation", s.notifier.SendBookingConfirmation, result)
	}
	return &result, nil
}

// AutoCancelExpiredBookings cancels every unpaid pending booking whose hold
// has lapsed and returns how many were cancelled. Running it again right away
// cancels nothing.
func (s *BookingService) AutoCancelExpiredBookings(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "BookingService.AutoCancelExpiredBookings")
	defer span.End()

	cancelled, err := s.repo.CancelExpired(ctx, s.now())
	if err != nil {
		return 0, failSpan(span, fmt.Errorf("failed to cancel expired bookings: %w", err))
	}

	span.SetAttributes(attribute.Int("bookings.cancelled", len(cancelled)))
	if len(cancelled) == 0 {
		return 0, nil
	}

	s.logger.Info("auto-cancelled expired bookings", zap.Int("count", len(cancelled)))
	if s.notifier != nil {
		for _, bk := range cancelled {
			notifyBestEffort(ctx, s.logger, "booking_cancellation", s.notifier.SendBookingCancellation, s.describe(ctx, bk))
		}
	}
	return len(cancelled), nil
}

// ListBookings returns a filtered, sorted page of bookings (admin).
func (s *BookingService) ListBookings(ctx context.Context, q ListBookingsQuery) (*domain.PaginatedResult[BookingDTO], error) {
	filter, err := q.toFilter()
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

// ListUserBookings returns a page of the user's own bookings.
func (s *BookingService) ListUserBookings(ctx context.Context, userID uuid.UUID, q ListBookingsQuery) (*domain.PaginatedResult[BookingDTO], error) {
	filter, err := q.toFilter()
	if err != nil {
		return nil, err
	}
	filter.UserID = &userID
	return s.list(ctx, filter)
}

func (s *BookingService) list(ctx context.Context, filter bookingDomain.ListFilter) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}

	result := domain.NewPaginatedResult(dtos, total, filter.Page, filter.Limit)
	return &result, nil
}

// GenerateInvoice renders the booking's invoice document.
func (s *BookingService) GenerateInvoice(ctx context.Context, bookingID uuid.UUID, requester Requester) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "BookingService.GenerateInvoice")
	defer span.End()

	bk, err := s.loadAuthorized(ctx, bookingID, requester)
	if err != nil {
		return nil, err
	}

	doc, err := s.invoices.Render(s.describe(ctx, bk))
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}
	return doc, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

func (s *BookingService) loadAuthorized(ctx context.Context, bookingID uuid.UUID, requester Requester) (*bookingDomain.Booking, error) {
	return loadAuthorizedBooking(ctx, s.repo, bookingID, requester)
}

func loadAuthorizedBooking(ctx context.Context, repo bookingDomain.BookingRepository, bookingID uuid.UUID, requester Requester) (*bookingDomain.Booking, error) {
	bk, err := repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !requester.IsAdmin && !bk.IsOwnedBy(requester.UserID) {
		return nil, domain.NewForbiddenError(bookingDomain.CodeNotOwner, "booking does not belong to this user")
	}
	return bk, nil
}

// describe converts bk to a DTO with its tour attached when the tour still exists.
func (s *BookingService) describe(ctx context.Context, bk *bookingDomain.Booking) BookingDTO {
	return describeBooking(ctx, s.tours, s.logger, bk)
}

func describeBooking(ctx context.Context, tours tour.Catalog, logger *zap.Logger, bk *bookingDomain.Booking) BookingDTO {
	dto := toBookingDTO(bk)
	t, err := tours.FindByID(ctx, bk.TourID())
	if err != nil {
		logger.Debug("tour lookup failed", zap.String("tour_id", bk.TourID().String()), zap.Error(err))
		return dto
	}
	return dto.withTour(t)
}

func notifyBestEffort(ctx context.Context, logger *zap.Logger, kind string, send func(context.Context, BookingDTO) error, booking BookingDTO) {
	if err := send(ctx, booking); err != nil {
		logger.Warn("failed to send notification",
			zap.String("notification", kind),
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err),
		)
	}
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:                  bk.ID(),
		TourID:              bk.TourID(),
		UserID:              bk.UserID(),
		StartDate:           bk.StartDate(),
		NumberOfPeople:      bk.NumberOfPeople(),
		TotalPriceCents:     bk.TotalPriceCents(),
		DiscountAmountCents: bk.DiscountAmountCents(),
		AmountPaidCents:     bk.AmountPaidCents(),
		Currency:            bk.Currency(),
		PaymentMethod:       bk.PaymentMethod().String(),
		SpecialRequests:     bk.SpecialRequests(),
		CustomerInfo:        bk.Customer(),
		VoucherCode:         bk.VoucherCode(),
		TransactionID:       bk.TransactionID(),
		Status:              bk.Status().String(),
		PaymentStatus:       bk.PaymentStatus().String(),
		ExpiresAt:           bk.ExpiresAt(),
		ConfirmedAt:         bk.ConfirmedAt(),
		CancelledAt:         bk.CancelledAt(),
		Version:             bk.Version(),
		CreatedAt:           bk.CreatedAt(),
		UpdatedAt:           bk.UpdatedAt(),
	}
}

func (d BookingDTO) withTour(t *tour.Tour) BookingDTO {
	d.Tour = &TourSummaryDTO{
		ID:         t.ID,
		Title:      t.Title,
		PriceCents: t.PriceCents,
		Currency:   t.Currency,
	}
	return d
}

// parseDate accepts a calendar date (2006-01-02) or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (r UpdateBookingRequest) toPatch() (bookingDomain.Patch, error) {
	var p bookingDomain.Patch
	if r.StartDate != nil {
		d, err := parseDate(*r.StartDate)
		if err != nil {
			return p, domain.NewValidationError(fmt.Sprintf("invalid start date: %v", err))
		}
		p.StartDate = &d
	}
	if r.PaymentMethod != nil {
		m := payment.Method(*r.PaymentMethod)
		p.PaymentMethod = &m
	}
	if r.Status != nil {
		st := bookingDomain.BookingStatus(*r.Status)
		p.Status = &st
	}
	if r.PaymentStatus != nil {
		ps := bookingDomain.PaymentStatus(*r.PaymentStatus)
		p.PaymentStatus = &ps
	}
	p.NumberOfPeople = r.NumberOfPeople
	p.Customer = r.CustomerInfo
	p.SpecialRequests = r.SpecialRequests
	p.VoucherCode = r.VoucherCode
	p.TransactionID = r.TransactionID
	return p, nil
}

func (q ListBookingsQuery) toFilter() (bookingDomain.ListFilter, error) {
	var f bookingDomain.ListFilter
	f.Page, f.Limit = domain.NormalizePage(q.Page, q.Limit)

	if q.Status != "" {
		st, err := bookingDomain.ParseBookingStatus(q.Status)
		if err != nil {
			return f, domain.NewValidationError(err.Error())
		}
		f.Status = &st
	}
	if q.PaymentStatus != "" {
		ps, err := bookingDomain.ParsePaymentStatus(q.PaymentStatus)
		if err != nil {
			return f, domain.NewValidationError(err.Error())
		}
		f.PaymentStatus = &ps
	}
	if q.UserID != "" {
		id, err := uuid.Parse(q.UserID)
		if err != nil {
			return f, domain.NewValidationError("invalid user_id")
		}
		f.UserID = &id
	}
	if q.TourID != "" {
		id, err := uuid.Parse(q.TourID)
		if err != nil {
			return f, domain.NewValidationError("invalid tour_id")
		}
		f.TourID = &id
	}
	if q.FromDate != "" {
		d, err := parseDate(q.FromDate)
		if err != nil {
			return f, domain.NewValidationError("invalid from_date")
		}
		f.FromDate = &d
	}
	if q.ToDate != "" {
		d, err := parseDate(q.ToDate)
		if err != nil {
			return f, domain.NewValidationError("invalid to_date")
		}
		f.ToDate = &d
	}

	f.SortBy = bookingDomain.SortByCreatedAt
	if q.SortBy != "" {
		f.SortBy = bookingDomain.SortField(q.SortBy)
		if !f.SortBy.IsValid() {
			return f, domain.NewValidationError(fmt.Sprintf("cannot sort by %q", q.SortBy))
		}
	}
	switch strings.ToUpper(q.SortOrder) {
	case "", "DESC":
		f.Ascending = false
	case "ASC":
		f.Ascending = true
	default:
		return f, domain.NewValidationError("sort_order must be ASC or DESC")
	}
	return f, nil
}

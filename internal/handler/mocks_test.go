package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/application"
	"github.com/motobiketours/service-booking/internal/domain"
	"github.com/motobiketours/service-booking/internal/platform/auth"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubValidator accepts the tokens it was given and nothing else.
type stubValidator map[string]*auth.Claims

func (v stubValidator) ValidateToken(token string) (*auth.Claims, error) {
	claims, ok := v[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

func claimsFor(id uuid.UUID, role string) *auth.Claims {
	c := &auth.Claims{Role: role}
	c.Subject = id.String()
	return c
}

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) dto(args mock.Arguments) (*application.BookingDTO, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.BookingDTO), args.Error(1)
}

func (m *mockBookings) page(args mock.Arguments) (*domain.PaginatedResult[application.BookingDTO], error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaginatedResult[application.BookingDTO]), args.Error(1)
}

func (m *mockBookings) CreateBooking(ctx context.Context, userID uuid.UUID, req application.CreateBookingRequest) (*application.BookingDTO, error) {
	return m.dto(m.Called(ctx, userID, req))
}

func (m *mockBookings) GetBookingDetail(ctx context.Context, id uuid.UUID, r application.Requester) (*application.BookingDTO, error) {
	return m.dto(m.Called(ctx, id, r))
}

func (m *mockBookings) UpdateBooking(ctx context.Context, id uuid.UUID, req application.UpdateBookingRequest, r application.Requester) (*application.BookingDTO, error) {
	return m.dto(m.Called(ctx, id, req, r))
}

func (m *mockBookings) CancelBooking(ctx context.Context, id uuid.UUID, r application.Requester) (*application.BookingDTO, error) {
	return m.dto(m.Called(ctx, id, r))
}

func (m *mockBookings) ConfirmBooking(ctx context.Context, id uuid.UUID) (*application.BookingDTO, error) {
	return m.dto(m.Called(ctx, id))
}

func (m *mockBookings) ListUserBookings(ctx context.Context, userID uuid.UUID, q application.ListBookingsQuery) (*domain.PaginatedResult[application.BookingDTO], error) {
	return m.page(m.Called(ctx, userID, q))
}

func (m *mockBookings) ListBookings(ctx context.Context, q application.ListBookingsQuery) (*domain.PaginatedResult[application.BookingDTO], error) {
	return m.page(m.Called(ctx, q))
}

func (m *mockBookings) GenerateInvoice(ctx context.Context, id uuid.UUID, r application.Requester) ([]byte, error) {
	args := m.Called(ctx, id, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockBookings) GetBookingStats(ctx context.Context) (*application.BookingStatsDTO, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.BookingStatsDTO), args.Error(1)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) Initiate(ctx context.Context, req application.InitiatePaymentRequest, r application.Requester) (*application.InitiatePaymentResult, error) {
	args := m.Called(ctx, req, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.InitiatePaymentResult), args.Error(1)
}

func (m *mockPayments) HandleVNPayCallback(ctx context.Context, params map[string]string) (*application.CallbackResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.CallbackResult), args.Error(1)
}

func (m *mockPayments) HandleStripeWebhook(ctx context.Context, payload []byte, sig string) (*application.CallbackResult, error) {
	args := m.Called(ctx, payload, sig)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.CallbackResult), args.Error(1)
}

func (m *mockPayments) GetBookingPayments(ctx context.Context, id uuid.UUID, r application.Requester) ([]application.PaymentDTO, error) {
	args := m.Called(ctx, id, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]application.PaymentDTO), args.Error(1)
}

type stubExpiry struct {
	n   int
	err error
}

func (s stubExpiry) AutoCancelExpiredBookings(context.Context) (int, error) { return s.n, s.err }

var errBoom = errors.New("boom")

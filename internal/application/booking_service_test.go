package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/domain"
	bookingDomain "github.com/motobiketours/service-booking/internal/domain/booking"
	"github.com/motobiketours/service-booking/internal/domain/tour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

type bookingFixture struct {
	svc      *BookingService
	repo     *memBookingRepo
	notifier *mockNotifier
	invoices *stubInvoices
	tour     *tour.Tour
	owner    Requester
	admin    Requester
	stranger Requester
	now      time.Time
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		repo:     newMemBookingRepo(),
		notifier: new(mockNotifier),
		invoices: &stubInvoices{},
		tour: &tour.Tour{
			ID:         uuid.New(),
			Title:      "Ha Giang Loop",
			PriceCents: 10000,
			Currency:   "USD",
		},
		owner:    Requester{UserID: uuid.New()},
		admin:    Requester{UserID: uuid.New(), IsAdmin: true},
		stranger: Requester{UserID: uuid.New()},
		now:      fixedNow,
	}
	f.svc = NewBookingService(
		f.repo,
		memCatalog{f.tour.ID: f.tour},
		bookingDomain.NewUnitPricePricingStrategy(),
		f.notifier,
		f.invoices,
		DefaultBookingPolicy(),
		zap.NewNop(),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func (f *bookingFixture) create(t *testing.T, startDate string) *BookingDTO {
	t.Helper()
	dto, err := f.svc.CreateBooking(context.Background(), f.owner.UserID, CreateBookingRequest{
		TourID:         f.tour.ID,
		StartDate:      startDate,
		NumberOfPeople: 2,
		PaymentMethod:  "vnpay",
		CustomerInfo: bookingDomain.CustomerInfo{
			Name:  "Linh Tran",
			Email: "linh@example.com",
			Phone: "+84901234567",
		},
	})
	require.NoError(t, err)
	return dto
}

func TestCreateBooking_PricesAndHolds(t *testing.T) {
	f := newBookingFixture(t)

	dto := f.create(t, "2026-05-20")

	assert.Equal(t, int64(20000), dto.TotalPriceCents)
	assert.Equal(t, int64(0), dto.DiscountAmountCents)
	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, "unpaid", dto.PaymentStatus)
	require.NotNil(t, dto.ExpiresAt)
	assert.WithinDuration(t, fixedNow.Add(30*time.Minute), *dto.ExpiresAt, time.Second)
	require.NotNil(t, dto.Tour)
	assert.Equal(t, "Ha Giang Loop", dto.Tour.Title)

	stored, err := f.repo.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, f.owner.UserID, stored.UserID())
	f.notifier.AssertNotCalled(t, "SendBookingConfirmation", mock.Anything, mock.Anything)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	base := CreateBookingRequest{
		TourID:         f.tour.ID,
		StartDate:      "2026-05-20",
		NumberOfPeople: 1,
		PaymentMethod:  "cash",
		CustomerInfo:   bookingDomain.CustomerInfo{Name: "A", Email: "a@example.com", Phone: "1"},
	}

	t.Run("unknown tour", func(t *testing.T) {
		req := base
		req.TourID = uuid.New()
		_, err := f.svc.CreateBooking(ctx, f.owner.UserID, req)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("yesterday", func(t *testing.T) {
		req := base
		req.StartDate = "2026-05-09"
		_, err := f.svc.CreateBooking(ctx, f.owner.UserID, req)
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	})

	t.Run("today is allowed", func(t *testing.T) {
		req := base
		req.StartDate = "2026-05-10"
		_, err := f.svc.CreateBooking(ctx, f.owner.UserID, req)
		assert.NoError(t, err)
	})

	t.Run("zero people", func(t *testing.T) {
		req := base
		req.NumberOfPeople = 0
		_, err := f.svc.CreateBooking(ctx, f.owner.UserID, req)
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	})

	t.Run("unparseable date", func(t *testing.T) {
		req := base
		req.StartDate = "next tuesday"
		_, err := f.svc.CreateBooking(ctx, f.owner.UserID, req)
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	})

	t.Run("unknown payment method", func(t *testing.T) {
		req := base
		req.PaymentMethod = "paypal"
		_, err := f.svc.CreateBooking(ctx, f.owner.UserID, req)
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	})
}

func TestGetBookingDetail_AccessControl(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	dto := f.create(t, "2026-05-20")

	_, err := f.svc.GetBookingDetail(ctx, dto.ID, f.owner)
	assert.NoError(t, err)

	_, err = f.svc.GetBookingDetail(ctx, dto.ID, f.admin)
	assert.NoError(t, err)

	_, err = f.svc.GetBookingDetail(ctx, dto.ID, f.stranger)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = f.svc.GetBookingDetail(ctx, uuid.New(), f.admin)
	assert.True(t, domain.IsNotFound(err))
}

func TestUpdateBooking(t *testing.T) {
	ctx := context.Background()
	people := 5
	requests := "vegetarian meals"
	confirmed := "confirmed"

	t.Run("owner edits fields and price is kept", func(t *testing.T) {
		f := newBookingFixture(t)
		dto := f.create(t, "2026-05-20")

		got, err := f.svc.UpdateBooking(ctx, dto.ID, UpdateBookingRequest{
			NumberOfPeople:  &people,
			SpecialRequests: &requests,
		}, f.owner)
		require.NoError(t, err)
		assert.Equal(t, 5, got.NumberOfPeople)
		assert.Equal(t, "vegetarian meals", got.SpecialRequests)
		assert.Equal(t, int64(20000), got.TotalPriceCents)
		assert.Equal(t, dto.Version+1, got.Version)
	})

	t.Run("owner cannot change status", func(t *testing.T) {
		f := newBookingFixture(t)
		dto := f.create(t, "2026-05-20")

		_, err := f.svc.UpdateBooking(ctx, dto.ID, UpdateBookingRequest{Status: &confirmed}, f.owner)
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
	})

	t.Run("admin can change status", func(t *testing.T) {
		f := newBookingFixture(t)
		dto := f.create(t, "2026-05-20")

		got, err := f.svc.UpdateBooking(ctx, dto.ID, UpdateBookingRequest{Status: &confirmed}, f.admin)
		require.NoError(t, err)
		assert.Equal(t, "confirmed", got.Status)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		f := newBookingFixture(t)
		dto := f.create(t, "2026-05-20")

		_, err := f.svc.UpdateBooking(ctx, dto.ID, UpdateBookingRequest{SpecialRequests: &requests}, f.stranger)
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
	})

	t.Run("cancelled booking rejects patches", func(t *testing.T) {
		f := newBookingFixture(t)
		f.notifier.On("SendBookingCancellation", mock.Anything, mock.Anything).Return(nil)
		dto := f.create(t, "2026-05-20")
		_, err := f.svc.CancelBooking(ctx, dto.ID, f.owner)
		require.NoError(t, err)

		_, err = f.svc.UpdateBooking(ctx, dto.ID, UpdateBookingRequest{SpecialRequests: &requests}, f.admin)
		assert.True(t, domain.IsKind(err, domain.KindInvalidState))
	})
}

func TestCancelBooking_OutsideCutoff(t *testing.T) {
	f := newBookingFixture(t)
	f.notifier.On("SendBookingCancellation", mock.Anything, mock.Anything).Return(nil)
	dto := f.create(t, "2026-05-12")

	got, err := f.svc.CancelBooking(context.Background(), dto.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)
	assert.NotNil(t, got.CancelledAt)
	f.notifier.AssertNumberOfCalls(t, "SendBookingCancellation", 1)
}

func TestCancelBooking_InsideCutoff(t *testing.T) {
	f := newBookingFixture(t)
	f.notifier.On("SendBookingCancellation", mock.Anything, mock.Anything).Return(nil)
	dto := f.create(t, "2026-05-11")

	_, err := f.svc.CancelBooking(context.Background(), dto.ID, f.owner)
	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.KindInvalidState, derr.Kind)
	assert.Equal(t, bookingDomain.CodeCancellationWindow, derr.Code)

	stored, err := f.repo.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPending, stored.Status())

	got, err := f.svc.CancelBooking(context.Background(), dto.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)
}

func TestCancelBooking_Twice(t *testing.T) {
	f := newBookingFixture(t)
	f.notifier.On("SendBookingCancellation", mock.Anything, mock.Anything).Return(nil)
	dto := f.create(t, "2026-05-20")

	_, err := f.svc.CancelBooking(context.Background(), dto.ID, f.owner)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(context.Background(), dto.ID, f.owner)
	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, bookingDomain.CodeAlreadyCancelled, derr.Code)
}

func TestCancelBooking_NotificationFailureIsSwallowed(t *testing.T) {
	f := newBookingFixture(t)
	f.notifier.On("SendBookingCancellation", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	dto := f.create(t, "2026-05-20")

	got, err := f.svc.CancelBooking(context.Background(), dto.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)
}

func TestConfirmBooking(t *testing.T) {
	f := newBookingFixture(t)
	f.notifier.On("SendBookingConfirmation", mock.Anything, mock.Anything).Return(nil)
	dto := f.create(t, "2026-05-20")

	got, err := f.svc.ConfirmBooking(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", got.Status)
	assert.Equal(t, "unpaid", got.PaymentStatus)
	f.notifier.AssertNumberOfCalls(t, "SendBookingConfirmation", 1)

	_, err = f.svc.ConfirmBooking(context.Background(), dto.ID)
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))
}

func TestAutoCancelExpiredBookings_Idempotent(t *testing.T) {
	f := newBookingFixture(t)
	f.notifier.On("SendBookingCancellation", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	first := f.create(t, "2026-05-20")
	second := f.create(t, "2026-05-21")
	f.now = fixedNow.Add(20 * time.Minute)
	fresh := f.create(t, "2026-05-22")

	f.now = fixedNow.Add(31 * time.Minute)
	n, err := f.svc.AutoCancelExpiredBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.AutoCancelExpiredBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		b, err := f.repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, bookingDomain.StatusCancelled, b.Status())
	}
	b, err := f.repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPending, b.Status())
	f.notifier.AssertNumberOfCalls(t, "SendBookingCancellation", 2)
}

func TestAutoCancelExpiredBookings_SkipsConfirmed(t *testing.T) {
	f := newBookingFixture(t)
	f.notifier.On("SendBookingConfirmation", mock.Anything, mock.Anything).Return(nil)
	dto := f.create(t, "2026-05-20")
	_, err := f.svc.ConfirmBooking(context.Background(), dto.ID)
	require.NoError(t, err)

	f.now = fixedNow.Add(2 * time.Hour)
	n, err := f.svc.AutoCancelExpiredBookings(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListUserBookings_OnlyOwn(t *testing.T) {
	f := newBookingFixture(t)
	f.create(t, "2026-05-20")
	f.create(t, "2026-05-21")
	_, err := f.svc.CreateBooking(context.Background(), f.stranger.UserID, CreateBookingRequest{
		TourID:         f.tour.ID,
		StartDate:      "2026-05-20",
		NumberOfPeople: 1,
		PaymentMethod:  "cash",
		CustomerInfo:   bookingDomain.CustomerInfo{Name: "B", Email: "b@example.com", Phone: "2"},
	})
	require.NoError(t, err)

	page, err := f.svc.ListUserBookings(context.Background(), f.owner.UserID, ListBookingsQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, domain.DefaultPageLimit, page.Limit)
	for _, b := range page.Items {
		assert.Equal(t, f.owner.UserID, b.UserID)
	}

	all, err := f.svc.ListBookings(context.Background(), ListBookingsQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
}

func TestListBookingsQuery_ToFilter(t *testing.T) {
	f, err := ListBookingsQuery{Status: "pending", SortBy: "totalPrice", SortOrder: "asc", Page: 2, Limit: 500}.toFilter()
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPending, *f.Status)
	assert.Equal(t, bookingDomain.SortByTotalPrice, f.SortBy)
	assert.True(t, f.Ascending)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, domain.MaxPageLimit, f.Limit)

	f, err = ListBookingsQuery{}.toFilter()
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.SortByCreatedAt, f.SortBy)
	assert.False(t, f.Ascending)

	for _, q := range []ListBookingsQuery{
		{Status: "archived"},
		{PaymentStatus: "half"},
		{SortBy: "id"},
		{SortOrder: "sideways"},
		{UserID: "nope"},
		{FromDate: "yesterday"},
	} {
		_, err := q.toFilter()
		assert.True(t, domain.IsKind(err, domain.KindValidation), "%+v", q)
	}
}

func TestGenerateInvoice(t *testing.T) {
	f := newBookingFixture(t)
	dto := f.create(t, "2026-05-20")

	doc, err := f.svc.GenerateInvoice(context.Background(), dto.ID, f.owner)
	require.NoError(t, err)
	assert.Contains(t, string(doc), dto.ID.String())
	require.Len(t, f.invoices.rendered, 1)
	assert.NotNil(t, f.invoices.rendered[0].Tour)

	_, err = f.svc.GenerateInvoice(context.Background(), dto.ID, f.stranger)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestGetBookingStats(t *testing.T) {
	f := newBookingFixture(t)
	f.notifier.On("SendBookingConfirmation", mock.Anything, mock.Anything).Return(nil)
	f.create(t, "2026-05-20")
	dto := f.create(t, "2026-05-21")
	_, err := f.svc.ConfirmBooking(context.Background(), dto.ID)
	require.NoError(t, err)

	stats, err := f.svc.GetBookingStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalBookings)
	assert.Equal(t, int64(1), stats.ByStatus["pending"])
	assert.Equal(t, int64(1), stats.ByStatus["confirmed"])
}

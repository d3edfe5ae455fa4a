package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/domain"
	bookingDomain "github.com/motobiketours/service-booking/internal/domain/booking"
	"github.com/motobiketours/service-booking/internal/domain/payment"
	"github.com/motobiketours/service-booking/internal/domain/tour"
	"github.com/motobiketours/service-booking/internal/gateway/stripe"
	"github.com/stretchr/testify/mock"
)

// memBookingRepo keeps value copies so callers cannot mutate stored state
// without going through Save or Update.
type memBookingRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]bookingDomain.Booking
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{rows: make(map[uuid.UUID]bookingDomain.Booking)}
}

func (r *memBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	return &b, nil
}

func (r *memBookingRepo) List(_ context.Context, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range r.rows {
		b := b
		if f.UserID != nil && b.UserID() != *f.UserID {
			continue
		}
		if f.Status != nil && b.Status() != *f.Status {
			continue
		}
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	total := int64(len(out))
	start := (f.Page - 1) * f.Limit
	if start > len(out) {
		start = len(out)
	}
	end := start + f.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *memBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, b := range r.rows {
		counts[b.Status().String()]++
	}
	return counts, nil
}

func (r *memBookingRepo) FindPendingExpired(_ context.Context, before time.Time) ([]*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range r.rows {
		b := b
		if b.IsExpired(before) {
			out = append(out, &b)
		}
	}
	return out, nil
}

func (r *memBookingRepo) CancelExpired(_ context.Context, before time.Time) ([]*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for id, b := range r.rows {
		b := b
		if !b.IsExpired(before) {
			continue
		}
		if err := b.Cancel(before, true, 0); err != nil {
			return nil, err
		}
		b.IncrementVersion()
		r.rows[id] = b
		out = append(out, &b)
	}
	return out, nil
}

func (r *memBookingRepo) Save(_ context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[b.ID()] = *b
	return nil
}

func (r *memBookingRepo) Update(_ context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[b.ID()]
	if !ok {
		return domain.NewNotFoundError("booking", b.ID().String())
	}
	if stored.Version() != b.Version()-1 {
		return domain.NewConflictError("booking was modified concurrently")
	}
	r.rows[b.ID()] = *b
	return nil
}

func (r *memBookingRepo) snapshot() map[uuid.UUID]bookingDomain.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[uuid.UUID]bookingDomain.Booking, len(r.rows))
	for k, v := range r.rows {
		cp[k] = v
	}
	return cp
}

func (r *memBookingRepo) restore(rows map[uuid.UUID]bookingDomain.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = rows
}

type memPaymentRepo struct {
	mu   sync.Mutex
	rows []payment.Payment
}

func (r *memPaymentRepo) Save(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *p)
	return nil
}

func (r *memPaymentRepo) FindLatestPendingByBooking(_ context.Context, bookingID uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *payment.Payment
	for i := range r.rows {
		p := r.rows[i]
		if p.BookingID() != bookingID || p.Status() != payment.StatusPending {
			continue
		}
		if latest == nil || !p.CreatedAt().Before(latest.CreatedAt()) {
			latest = &p
		}
	}
	if latest == nil {
		return nil, domain.NewNotFoundError("payment", bookingID.String())
	}
	return latest, nil
}

func (r *memPaymentRepo) FindByTransactionID(_ context.Context, transactionID string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].TransactionID() == transactionID {
			p := r.rows[i]
			return &p, nil
		}
	}
	return nil, domain.NewNotFoundError("payment", transactionID)
}

func (r *memPaymentRepo) FindByBooking(_ context.Context, bookingID uuid.UUID) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].BookingID() == bookingID {
			p := r.rows[i]
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) Resolve(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID() != p.ID() {
			continue
		}
		if r.rows[i].Status() != payment.StatusPending {
			return domain.NewConflictError("payment already resolved")
		}
		r.rows[i] = *p
		return nil
	}
	return domain.NewNotFoundError("payment", p.ID().String())
}

func (r *memPaymentRepo) all() []payment.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]payment.Payment(nil), r.rows...)
}

// memTx rolls both repositories back when fn fails.
type memTx struct {
	bookings *memBookingRepo
	payments *memPaymentRepo
}

func (t *memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	bookings := t.bookings.snapshot()
	payments := t.payments.all()
	if err := fn(ctx); err != nil {
		t.bookings.restore(bookings)
		t.payments.mu.Lock()
		t.payments.rows = payments
		t.payments.mu.Unlock()
		return err
	}
	return nil
}

type memCatalog map[uuid.UUID]*tour.Tour

func (c memCatalog) FindByID(_ context.Context, id uuid.UUID) (*tour.Tour, error) {
	t, ok := c[id]
	if !ok {
		return nil, domain.NewNotFoundError("tour", id.String())
	}
	return t, nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendBookingConfirmation(ctx context.Context, b BookingDTO) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockNotifier) SendBookingCancellation(ctx context.Context, b BookingDTO) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockNotifier) SendPaymentSuccess(ctx context.Context, b BookingDTO) error {
	return m.Called(ctx, b).Error(0)
}

type mockStripe struct {
	mock.Mock
}

func (m *mockStripe) CreateCheckoutSession(ctx context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func (m *mockStripe) ParseWebhook(payload []byte, signatureHeader string) (*stripe.WebhookEvent, error) {
	args := m.Called(payload, signatureHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.WebhookEvent), args.Error(1)
}

type stubInvoices struct {
	rendered []BookingDTO
}

func (s *stubInvoices) Render(b BookingDTO) ([]byte, error) {
	s.rendered = append(s.rendered, b)
	return []byte("%PDF-1.3 " + b.ID.String()), nil
}

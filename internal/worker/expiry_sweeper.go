package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpiredBookingCanceller cancels every unpaid booking whose hold has lapsed.
type ExpiredBookingCanceller interface {
	AutoCancelExpiredBookings(ctx context.Context) (int, error)
}

// Lease grants one replica the right to run a sweep. The ttl bounds how long
// a crashed holder can block the others.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// ExpirySweeper periodically cancels expired booking holds.
type ExpirySweeper struct {
	bookings ExpiredBookingCanceller
	lease    Lease
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewExpirySweeper creates a new ExpirySweeper. lease may be nil for a single replica.
func NewExpirySweeper(bookings ExpiredBookingCanceller, lease Lease, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		bookings: bookings,
		lease:    lease,
		interval: interval,
		logger:   logger,
	}
}

// Start runs a sweep immediately and then on every tick until ctx is done or Stop is called.
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("expiry sweeper already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("starting expiry sweeper", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("expiry sweeper stopped")
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
	}
}

// RunOnce performs a single sweep and returns how many bookings it cancelled.
// A sweep skipped because another replica is sweeping right now reports zero.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (int, error) {
	if s.lease != nil {
		// A crashed holder blocks other replicas for at most one tick.
		ok, err := s.lease.Acquire(ctx, s.interval*9/10)
		if err != nil {
			return 0, fmt.Errorf("failed to acquire sweep lease: %w", err)
		}
		if !ok {
			s.logger.Debug("expiry sweep skipped, lease held elsewhere")
			return 0, nil
		}
		defer func() {
			if err := s.lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release sweep lease", zap.Error(err))
			}
		}()
	}

	n, err := s.bookings.AutoCancelExpiredBookings(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired bookings cancelled", zap.Int("count", n))
	}
	return n, nil
}

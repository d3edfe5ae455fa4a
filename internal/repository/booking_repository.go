package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/domain"
	bookingDomain "github.com/motobiketours/service-booking/internal/domain/booking"
	"github.com/motobiketours/service-booking/internal/domain/payment"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                  uuid.UUID                                     `gorm:"type:uuid;primaryKey"`
	TourID              uuid.UUID                                     `gorm:"type:uuid;index;not null"`
	UserID              uuid.UUID                                     `gorm:"type:uuid;index;not null"`
	StartDate           time.Time                                     `gorm:"type:date;not null"`
	NumberOfPeople      int                                           `gorm:"not null"`
	TotalPriceCents     int64                                         `gorm:"not null"`
	DiscountAmountCents int64                                         `gorm:"not null;default:0"`
	AmountPaidCents     int64                                         `gorm:"not null;default:0"`
	Currency            string                                        `gorm:"not null;size:3"`
	PaymentMethod       string                                        `gorm:"not null;size:20"`
	SpecialRequests     string                                        `gorm:"type:text"`
	CustomerInfo        datatypes.JSONType[bookingDomain.CustomerInfo] `gorm:"type:jsonb;not null"`
	VoucherCode         string                                        `gorm:"size:50"`
	TransactionID       string                                        `gorm:"size:100;index"`
	Status              string                                        `gorm:"not null;size:20;index"`
	PaymentStatus       string                                        `gorm:"not null;size:20"`
	ExpiresAt           *time.Time                                    `gorm:"index"`
	ConfirmedAt         *time.Time                                    `gorm:""`
	CancelledAt         *time.Time                                    `gorm:""`
	Version             int64                                         `gorm:"not null;default:1"`
	CreatedAt           time.Time                                     `gorm:"not null"`
	UpdatedAt           time.Time                                     `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

var sortColumns = map[bookingDomain.SortField]string{
	bookingDomain.SortByCreatedAt:  "created_at",
	bookingDomain.SortByStartDate:  "start_date",
	bookingDomain.SortByTotalPrice: "total_price_cents",
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// List retrieves bookings matching the filter with pagination.
func (r *GormBookingRepository) List(ctx context.Context, filter bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	query := dbFrom(ctx, r.db).Model(&BookingModel{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.TourID != nil {
		query = query.Where("tour_id = ?", *filter.TourID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", string(*filter.PaymentStatus))
	}
	if filter.FromDate != nil {
		query = query.Where("start_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("start_date <= ?", *filter.ToDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}

	page, limit := domain.NormalizePage(filter.Page, filter.Limit)
	var models []BookingModel
	if err := query.
		Order(column + " " + direction).
		Order("id").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// FindPendingExpired returns unpaid pending bookings whose hold ended before the given time.
func (r *GormBookingRepository) FindPendingExpired(ctx context.Context, before time.Time) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := dbFrom(ctx, r.db).
		Where("status = ? AND payment_status = ? AND expires_at < ?",
			string(bookingDomain.StatusPending), string(bookingDomain.PaymentUnpaid), before).
		Order("expires_at").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find expired bookings: %w", err)
	}
	return toDomainBookings(models)
}

// CancelExpired cancels every lapsed unpaid hold in one statement. Rows that
// were paid or cancelled concurrently no longer match the predicate.
func (r *GormBookingRepository) CancelExpired(ctx context.Context, before time.Time) ([]*bookingDomain.Booking, error) {
	now := time.Now().UTC()
	var models []BookingModel
	err := dbFrom(ctx, r.db).Raw(`
		UPDATE bookings
		SET status = ?, cancelled_at = ?, updated_at = ?, version = version + 1
		WHERE status = ? AND payment_status = ? AND expires_at < ?
		RETURNING *`,
		string(bookingDomain.StatusCancelled), now, now,
		string(bookingDomain.StatusPending), string(bookingDomain.PaymentUnpaid), before,
	).Scan(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to cancel expired bookings: %w", err)
	}
	return toDomainBookings(models)
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// IncrementVersion was called before Update, so the stored row holds version-1.
	expectedVersion := bk.Version() - 1
	result := dbFrom(ctx, r.db).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"start_date":            model.StartDate,
			"number_of_people":      model.NumberOfPeople,
			"total_price_cents":     model.TotalPriceCents,
			"discount_amount_cents": model.DiscountAmountCents,
			"amount_paid_cents":     model.AmountPaidCents,
			"payment_method":        model.PaymentMethod,
			"special_requests":      model.SpecialRequests,
			"customer_info":         model.CustomerInfo,
			"voucher_code":          model.VoucherCode,
			"transaction_id":        model.TransactionID,
			"status":                model.Status,
			"payment_status":        model.PaymentStatus,
			"expires_at":            model.ExpiresAt,
			"confirmed_at":          model.ConfirmedAt,
			"cancelled_at":          model.CancelledAt,
			"version":               model.Version,
			"updated_at":            model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := dbFrom(ctx, r.db).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
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
		CustomerInfo:        datatypes.NewJSONType(bk.Customer()),
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

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}
	paymentStatus, err := bookingDomain.ParsePaymentStatus(m.PaymentStatus)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.TourID,
		m.UserID,
		m.StartDate.UTC(),
		m.NumberOfPeople,
		m.TotalPriceCents,
		m.DiscountAmountCents,
		m.AmountPaidCents,
		m.Currency,
		payment.Method(m.PaymentMethod),
		m.SpecialRequests,
		m.CustomerInfo.Data(),
		m.VoucherCode,
		m.TransactionID,
		status,
		paymentStatus,
		m.ExpiresAt,
		m.ConfirmedAt,
		m.CancelledAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/domain"
	"github.com/motobiketours/service-booking/internal/domain/payment"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentModel is the GORM model for the payments table.
type PaymentModel struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	BookingID       uuid.UUID      `gorm:"type:uuid;index;not null"`
	AmountCents     int64          `gorm:"not null"`
	Currency        string         `gorm:"not null;size:3"`
	Method          string         `gorm:"not null;size:20"`
	TransactionID   string         `gorm:"not null;size:100;uniqueIndex"`
	GatewayTxnNo    string         `gorm:"size:100"`
	Status          string         `gorm:"not null;size:20;index"`
	GatewayResponse datatypes.JSON `gorm:"type:jsonb"`
	ErrorMessage    string         `gorm:"type:text"`
	ResolvedAt      *time.Time     `gorm:""`
	CreatedAt       time.Time      `gorm:"not null"`
	UpdatedAt       time.Time      `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (PaymentModel) TableName() string {
	return "payments"
}

// GormPaymentRepository is the GORM-based implementation of PaymentRepository.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository.
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Save persists a new payment attempt.
func (r *GormPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	if err := dbFrom(ctx, r.db).Create(toPaymentModel(p)).Error; err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// FindLatestPendingByBooking locks and returns the newest pending attempt for a booking.
func (r *GormPaymentRepository) FindLatestPendingByBooking(ctx context.Context, bookingID uuid.UUID) (*payment.Payment, error) {
	var model PaymentModel
	err := dbFrom(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("booking_id = ? AND status = ?", bookingID, string(payment.StatusPending)).
		Order("created_at DESC").
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("payment", bookingID.String())
		}
		return nil, fmt.Errorf("failed to find pending payment: %w", err)
	}
	return toDomainPayment(&model)
}

// FindByTransactionID retrieves an attempt by its local transaction id.
func (r *GormPaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	var model PaymentModel
	if err := dbFrom(ctx, r.db).Where("transaction_id = ?", transactionID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("payment", transactionID)
		}
		return nil, fmt.Errorf("failed to find payment by transaction ID: %w", err)
	}
	return toDomainPayment(&model)
}

// FindByBooking lists all attempts for a booking, newest first.
func (r *GormPaymentRepository) FindByBooking(ctx context.Context, bookingID uuid.UUID) ([]*payment.Payment, error) {
	var models []PaymentModel
	if err := dbFrom(ctx, r.db).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	payments := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := toDomainPayment(&models[i])
		if err != nil {
			return nil, err
		}
		payments[i] = p
	}
	return payments, nil
}

// Resolve writes the outcome of an attempt that is still pending in storage.
func (r *GormPaymentRepository) Resolve(ctx context.Context, p *payment.Payment) error {
	model := toPaymentModel(p)
	result := dbFrom(ctx, r.db).
		Model(&PaymentModel{}).
		Where("id = ? AND status = ?", model.ID, string(payment.StatusPending)).
		Updates(map[string]interface{}{
			"status":           model.Status,
			"gateway_txn_no":   model.GatewayTxnNo,
			"gateway_response": model.GatewayResponse,
			"error_message":    model.ErrorMessage,
			"resolved_at":      model.ResolvedAt,
			"updated_at":       model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to resolve payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("payment was already resolved")
	}
	return nil
}

func toPaymentModel(p *payment.Payment) *PaymentModel {
	var raw datatypes.JSON
	if len(p.GatewayResponse()) > 0 {
		raw = datatypes.JSON(p.GatewayResponse())
	}
	return &PaymentModel{
		ID:              p.ID(),
		BookingID:       p.BookingID(),
		AmountCents:     p.AmountCents(),
		Currency:        p.Currency(),
		Method:          p.Method().String(),
		TransactionID:   p.TransactionID(),
		GatewayTxnNo:    p.GatewayTxnNo(),
		Status:          string(p.Status()),
		GatewayResponse: raw,
		ErrorMessage:    p.ErrorMessage(),
		ResolvedAt:      p.ResolvedAt(),
		CreatedAt:       p.CreatedAt(),
		UpdatedAt:       p.UpdatedAt(),
	}
}

func toDomainPayment(m *PaymentModel) (*payment.Payment, error) {
	status, err := payment.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if len(m.GatewayResponse) > 0 {
		raw = json.RawMessage(m.GatewayResponse)
	}

	return payment.ReconstructPayment(
		m.ID,
		m.BookingID,
		m.AmountCents,
		m.Currency,
		payment.Method(m.Method),
		m.TransactionID,
		m.GatewayTxnNo,
		status,
		raw,
		m.ErrorMessage,
		m.ResolvedAt,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

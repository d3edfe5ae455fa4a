package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/domain"
	"github.com/motobiketours/service-booking/internal/domain/tour"
	"gorm.io/gorm"
)

// TourModel is the read model of the catalog's tours table.
type TourModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title      string    `gorm:"not null;size:255"`
	PriceCents int64     `gorm:"not null"`
	Currency   string    `gorm:"not null;size:3"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (TourModel) TableName() string {
	return "tours"
}

// GormTourCatalog reads tours from the shared catalog table.
type GormTourCatalog struct {
	db *gorm.DB
}

// NewGormTourCatalog creates a new GormTourCatalog.
func NewGormTourCatalog(db *gorm.DB) *GormTourCatalog {
	return &GormTourCatalog{db: db}
}

// FindByID returns the tour or a NotFound error.
func (c *GormTourCatalog) FindByID(ctx context.Context, id uuid.UUID) (*tour.Tour, error) {
	var model TourModel
	if err := dbFrom(ctx, c.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("tour", id.String())
		}
		return nil, fmt.Errorf("failed to find tour: %w", err)
	}
	return &tour.Tour{
		ID:         model.ID,
		Title:      model.Title,
		PriceCents: model.PriceCents,
		Currency:   model.Currency,
	}, nil
}

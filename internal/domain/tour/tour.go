package tour

import (
	"context"

	"github.com/google/uuid"
)

// Tour is the read-only view of a catalog tour that bookings are priced from.
type Tour struct {
	ID         uuid.UUID
	Title      string
	PriceCents int64
	Currency   string
}

// Catalog looks up tours. Tours are maintained elsewhere; this service only reads them.
type Catalog interface {
	// FindByID returns the tour or a NotFound error.
	FindByID(ctx context.Context, id uuid.UUID) (*Tour, error)
}

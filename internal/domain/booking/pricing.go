package booking

import "fmt"

// PricingStrategy defines the interface for calculating booking prices.
type PricingStrategy interface {
	// Calculate returns the total price in minor currency units.
	Calculate(params PricingParams) (int64, error)
}

// PricingParams holds the inputs for price calculation.
type PricingParams struct {
	UnitPriceCents int64
	NumberOfPeople int
	VoucherCode    string
}

// UnitPricePricingStrategy charges the tour's unit price per traveller.
// Vouchers are recorded on the booking but never reduce the total here;
// any discount belongs in the booking's discount amount.
type UnitPricePricingStrategy struct{}

// NewUnitPricePricingStrategy creates a new UnitPricePricingStrategy.
func NewUnitPricePricingStrategy() *UnitPricePricingStrategy {
	return &UnitPricePricingStrategy{}
}

// Calculate returns unit price x number of people.
func (s *UnitPricePricingStrategy) Calculate(params PricingParams) (int64, error) {
	if params.UnitPriceCents <= 0 {
		return 0, fmt.Errorf("unit price must be positive")
	}
	if params.NumberOfPeople < 1 {
		return 0, fmt.Errorf("number of people must be at least 1")
	}
	return params.UnitPriceCents * int64(params.NumberOfPeople), nil
}

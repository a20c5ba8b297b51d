package services

import (
	"errors"
	"fmt"

	domain "github.com/foxglove-goods/api/internal/domain"
)

var (
	// ErrPricingInvalidInput signals bad quote data such as a non-positive quantity.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
)

// PricingConfig carries the shop's shipping tariffs in pence.
type PricingConfig struct {
	// FreeShippingThreshold waives the standard fee when the subtotal reaches
	// it. The comparison is inclusive.
	FreeShippingThreshold int64
	StandardFee           int64
	NextDayFee            int64
}

// PricingEngine computes order totals. All arithmetic is integer pence.
type PricingEngine struct {
	cfg PricingConfig
}

// NewPricingEngine validates the tariff configuration and constructs the engine.
func NewPricingEngine(cfg PricingConfig) (*PricingEngine, error) {
	if cfg.FreeShippingThreshold < 0 || cfg.StandardFee < 0 || cfg.NextDayFee < 0 {
		return nil, errors.New("pricing: tariffs must be non-negative")
	}
	return &PricingEngine{cfg: cfg}, nil
}

// PricingInput describes a single-product order to quote.
type PricingInput struct {
	UnitPrice      int64
	Quantity       int
	ShippingMethod ShippingMethod
	// Discount, when set, must already be validated against the subtotal.
	Discount *DiscountCode
}

// PricingBreakdown itemises the quoted totals.
type PricingBreakdown struct {
	Subtotal       int64
	ShippingCost   int64
	DiscountAmount int64
	Total          int64
}

// Quote prices the order. The free shipping threshold is evaluated against the
// pre-discount subtotal.
func (e *PricingEngine) Quote(in PricingInput) (PricingBreakdown, error) {
	if e == nil {
		return PricingBreakdown{}, errors.New("pricing: engine is nil")
	}
	if in.Quantity <= 0 {
		return PricingBreakdown{}, fmt.Errorf("%w: quantity must be > 0", ErrPricingInvalidInput)
	}
	if in.UnitPrice < 0 {
		return PricingBreakdown{}, fmt.Errorf("%w: unit price must be >= 0", ErrPricingInvalidInput)
	}

	subtotal := in.UnitPrice * int64(in.Quantity)

	var shipping int64
	switch in.ShippingMethod {
	case domain.ShippingMethodNextDay:
		shipping = e.cfg.NextDayFee
	case domain.ShippingMethodStandard:
		if subtotal < e.cfg.FreeShippingThreshold {
			shipping = e.cfg.StandardFee
		}
	default:
		return PricingBreakdown{}, fmt.Errorf("%w: unknown shipping method %q", ErrPricingInvalidInput, in.ShippingMethod)
	}

	var discount int64
	if in.Discount != nil {
		discount = DiscountAmount(*in.Discount, subtotal)
	}

	return PricingBreakdown{
		Subtotal:       subtotal,
		ShippingCost:   shipping,
		DiscountAmount: discount,
		Total:          subtotal - discount + shipping,
	}, nil
}

// DiscountAmount computes how much a discount takes off the subtotal.
// Percentage values round half up; fixed values never exceed the subtotal.
func DiscountAmount(d DiscountCode, subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	switch d.Type {
	case domain.DiscountTypePercentage:
		if d.Value <= 0 {
			return 0
		}
		amount := (subtotal*d.Value + 50) / 100
		if amount > subtotal {
			return subtotal
		}
		return amount
	case domain.DiscountTypeFixed:
		if d.Value <= 0 {
			return 0
		}
		if d.Value > subtotal {
			return subtotal
		}
		return d.Value
	default:
		return 0
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/repositories"
)

var (
	// ErrDiscountInvalidInput indicates a malformed validation or upsert request.
	ErrDiscountInvalidInput = errors.New("discount: invalid input")
	// ErrDiscountNotFound indicates the code does not exist.
	ErrDiscountNotFound = errors.New("discount: not found")
	// ErrDiscountInactive indicates the code exists but has been switched off.
	ErrDiscountInactive = errors.New("discount: inactive")
	// ErrDiscountExpired indicates the code's expiry has passed.
	ErrDiscountExpired = errors.New("discount: expired")
	// ErrDiscountExhausted indicates the code hit its usage cap.
	ErrDiscountExhausted = errors.New("discount: usage cap reached")
	// ErrDiscountMinAmount indicates the order subtotal is below the code's minimum.
	ErrDiscountMinAmount = errors.New("discount: order below minimum amount")
)

// DiscountServiceDeps bundles collaborators required to construct a discount service.
type DiscountServiceDeps struct {
	Repository repositories.DiscountRepository
	Clock      func() time.Time
}

type discountService struct {
	repo  repositories.DiscountRepository
	clock func() time.Time
}

var _ DiscountService = (*discountService)(nil)

// NewDiscountService constructs the discount validation and admin service.
func NewDiscountService(deps DiscountServiceDeps) (DiscountService, error) {
	if deps.Repository == nil {
		return nil, errors.New("discount service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &discountService{
		repo: deps.Repository,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Validate checks the code against the subtotal. Checks run in a fixed order
// so callers see the most specific failure: existence, active flag, expiry,
// usage cap, then minimum amount.
func (s *discountService) Validate(ctx context.Context, cmd ValidateDiscountCommand) (DiscountQuote, error) {
	code := domain.NormalizeDiscountCode(cmd.Code)
	if code == "" {
		return DiscountQuote{}, fmt.Errorf("%w: code is required", ErrDiscountInvalidInput)
	}
	if cmd.Subtotal < 0 {
		return DiscountQuote{}, fmt.Errorf("%w: subtotal must be >= 0", ErrDiscountInvalidInput)
	}

	discount, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if repositories.DiscountErrorHasCode(err, repositories.DiscountErrorNotFound) {
			return DiscountQuote{}, ErrDiscountNotFound
		}
		return DiscountQuote{}, err
	}

	now := s.clock()
	if !discount.IsActive {
		return DiscountQuote{}, ErrDiscountInactive
	}
	if !discount.ExpiresAt.IsZero() && now.After(discount.ExpiresAt) {
		return DiscountQuote{}, ErrDiscountExpired
	}
	if discount.MaxUses > 0 && discount.CurrentUses >= discount.MaxUses {
		return DiscountQuote{}, ErrDiscountExhausted
	}
	if discount.MinOrderAmount > 0 && cmd.Subtotal < discount.MinOrderAmount {
		return DiscountQuote{}, fmt.Errorf("%w: requires at least %d", ErrDiscountMinAmount, discount.MinOrderAmount)
	}

	return DiscountQuote{
		Discount: discount,
		Amount:   DiscountAmount(discount, cmd.Subtotal),
	}, nil
}

func (s *discountService) ListDiscounts(ctx context.Context, limit int) ([]DiscountCode, error) {
	return s.repo.List(ctx, limit)
}

func (s *discountService) UpsertDiscount(ctx context.Context, cmd UpsertDiscountCommand) (DiscountCode, error) {
	code := domain.NormalizeDiscountCode(cmd.Code)
	if code == "" {
		return DiscountCode{}, fmt.Errorf("%w: code is required", ErrDiscountInvalidInput)
	}
	switch cmd.Type {
	case domain.DiscountTypePercentage:
		if cmd.Value <= 0 || cmd.Value > 100 {
			return DiscountCode{}, fmt.Errorf("%w: percentage value must be in 1..100", ErrDiscountInvalidInput)
		}
	case domain.DiscountTypeFixed:
		if cmd.Value <= 0 {
			return DiscountCode{}, fmt.Errorf("%w: fixed value must be > 0", ErrDiscountInvalidInput)
		}
	default:
		return DiscountCode{}, fmt.Errorf("%w: unknown discount type %q", ErrDiscountInvalidInput, cmd.Type)
	}
	if cmd.MinOrderAmount < 0 || cmd.MaxUses < 0 {
		return DiscountCode{}, fmt.Errorf("%w: minimum amount and usage cap must be >= 0", ErrDiscountInvalidInput)
	}

	now := s.clock()
	discount := domain.DiscountCode{
		Code:           code,
		Type:           cmd.Type,
		Value:          cmd.Value,
		MinOrderAmount: cmd.MinOrderAmount,
		MaxUses:        cmd.MaxUses,
		IsActive:       cmd.IsActive,
		ExpiresAt:      normaliseExpiry(cmd.ExpiresAt),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.repo.Upsert(ctx, discount)
}

func normaliseExpiry(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}

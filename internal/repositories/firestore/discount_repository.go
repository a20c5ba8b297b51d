package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/foxglove-goods/api/internal/domain"
	pfirestore "github.com/foxglove-goods/api/internal/platform/firestore"
	"github.com/foxglove-goods/api/internal/repositories"
)

const (
	discountCodesCollection       = "discountCodes"
	discountRedemptionsCollection = "discountRedemptions"
)

// DiscountRepository persists discount codes keyed by their normalised code
// and a redemption ledger keyed by code plus payment reference.
type DiscountRepository struct {
	provider    *pfirestore.Provider
	discounts   *pfirestore.BaseRepository[discountDocument]
	redemptions *pfirestore.BaseRepository[redemptionDocument]
}

// NewDiscountRepository constructs a Firestore-backed discount repository.
func NewDiscountRepository(provider *pfirestore.Provider) (*DiscountRepository, error) {
	if provider == nil {
		return nil, errors.New("discount repository requires firestore provider")
	}
	return &DiscountRepository{
		provider:    provider,
		discounts:   pfirestore.NewBaseRepository[discountDocument](provider, discountCodesCollection, nil, nil),
		redemptions: pfirestore.NewBaseRepository[redemptionDocument](provider, discountRedemptionsCollection, nil, nil),
	}, nil
}

func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	if r == nil || r.discounts == nil {
		return domain.DiscountCode{}, errors.New("discount repository not initialised")
	}
	code = domain.NormalizeDiscountCode(code)
	if code == "" {
		return domain.DiscountCode{}, repositories.NewDiscountError(repositories.DiscountErrorUnknown, "discount lookup: code is required", nil)
	}

	doc, err := r.discounts.Get(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return domain.DiscountCode{}, repositories.NewDiscountError(repositories.DiscountErrorNotFound, fmt.Sprintf("discount code %s not found", code), err)
		}
		return domain.DiscountCode{}, wrapDiscountError("discounts.get", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *DiscountRepository) List(ctx context.Context, limit int) ([]domain.DiscountCode, error) {
	if r == nil || r.discounts == nil {
		return nil, errors.New("discount repository not initialised")
	}

	docs, err := r.discounts.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.OrderBy("createdAt", firestore.Desc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	if err != nil {
		return nil, wrapDiscountError("discounts.list", err)
	}

	discounts := make([]domain.DiscountCode, 0, len(docs))
	for _, doc := range docs {
		discounts = append(discounts, doc.Data.toDomain(doc.ID))
	}
	return discounts, nil
}

func (r *DiscountRepository) Upsert(ctx context.Context, discount domain.DiscountCode) (domain.DiscountCode, error) {
	if r == nil || r.discounts == nil {
		return domain.DiscountCode{}, errors.New("discount repository not initialised")
	}
	code := domain.NormalizeDiscountCode(discount.Code)
	if code == "" {
		return domain.DiscountCode{}, repositories.NewDiscountError(repositories.DiscountErrorUnknown, "discount upsert: code is required", nil)
	}
	discount.Code = code

	existing, err := r.discounts.Get(ctx, code)
	switch {
	case err == nil:
		if discount.CreatedAt.IsZero() {
			discount.CreatedAt = existing.Data.CreatedAt
		}
		// Usage history survives edits to the code's terms.
		discount.CurrentUses = existing.Data.CurrentUses
	case isNotFound(err):
		discount.CurrentUses = 0
	default:
		return domain.DiscountCode{}, wrapDiscountError("discounts.upsert", err)
	}

	doc := newDiscountDocument(discount)
	if _, err := r.discounts.Set(ctx, code, doc); err != nil {
		return domain.DiscountCode{}, wrapDiscountError("discounts.upsert", err)
	}
	return doc.toDomain(code), nil
}

// Redeem counts a redemption exactly once per payment reference. The ledger
// document is read first so a replayed payment short-circuits to Applied=false
// before touching the usage counter.
func (r *DiscountRepository) Redeem(ctx context.Context, code, paymentRef string, now time.Time) (repositories.RedemptionResult, error) {
	if r == nil || r.provider == nil {
		return repositories.RedemptionResult{}, errors.New("discount repository not initialised")
	}
	code = domain.NormalizeDiscountCode(code)
	paymentRef = strings.TrimSpace(paymentRef)
	if code == "" || paymentRef == "" {
		return repositories.RedemptionResult{}, repositories.NewDiscountError(repositories.DiscountErrorUnknown, "discount redeem: code and payment reference are required", nil)
	}

	var result repositories.RedemptionResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		discountRef, err := r.discounts.DocumentRef(ctx, code)
		if err != nil {
			return err
		}
		ledgerRef, err := r.redemptions.DocumentRef(ctx, redemptionKey(code, paymentRef))
		if err != nil {
			return err
		}

		discountSnap, err := tx.Get(discountRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewDiscountError(repositories.DiscountErrorNotFound, fmt.Sprintf("discount code %s not found", code), err)
			}
			return err
		}
		var doc discountDocument
		if err := discountSnap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode discount %s: %w", code, err)
		}

		_, ledgerErr := tx.Get(ledgerRef)
		switch {
		case ledgerErr == nil:
			result = repositories.RedemptionResult{Discount: doc.toDomain(code), Applied: false}
			return nil
		case status.Code(ledgerErr) != codes.NotFound:
			return ledgerErr
		}

		if doc.MaxUses > 0 && doc.CurrentUses >= doc.MaxUses {
			return repositories.NewDiscountError(repositories.DiscountErrorExhausted, fmt.Sprintf("discount code %s reached its usage cap", code), nil)
		}

		if err := tx.Create(ledgerRef, redemptionDocument{
			Code:       code,
			PaymentRef: paymentRef,
			RedeemedAt: now.UTC(),
		}); err != nil {
			return err
		}
		if err := tx.Update(discountRef, []firestore.Update{
			{Path: "currentUses", Value: doc.CurrentUses + 1},
			{Path: "updatedAt", Value: now.UTC()},
		}); err != nil {
			return err
		}

		doc.CurrentUses++
		doc.UpdatedAt = now.UTC()
		result = repositories.RedemptionResult{Discount: doc.toDomain(code), Applied: true}
		return nil
	})
	if err != nil {
		return repositories.RedemptionResult{}, wrapDiscountError("discounts.redeem", err)
	}
	return result, nil
}

// Document types -------------------------------------------------------------

type discountDocument struct {
	Type           string    `firestore:"type"`
	Value          int64     `firestore:"value"`
	MinOrderAmount int64     `firestore:"minOrderAmount"`
	MaxUses        int64     `firestore:"maxUses"`
	CurrentUses    int64     `firestore:"currentUses"`
	IsActive       bool      `firestore:"isActive"`
	ExpiresAt      time.Time `firestore:"expiresAt,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func newDiscountDocument(d domain.DiscountCode) discountDocument {
	return discountDocument{
		Type:           string(d.Type),
		Value:          d.Value,
		MinOrderAmount: d.MinOrderAmount,
		MaxUses:        d.MaxUses,
		CurrentUses:    d.CurrentUses,
		IsActive:       d.IsActive,
		ExpiresAt:      d.ExpiresAt.UTC(),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func (d discountDocument) toDomain(code string) domain.DiscountCode {
	return domain.DiscountCode{
		Code:           code,
		Type:           domain.DiscountType(d.Type),
		Value:          d.Value,
		MinOrderAmount: d.MinOrderAmount,
		MaxUses:        d.MaxUses,
		CurrentUses:    d.CurrentUses,
		IsActive:       d.IsActive,
		ExpiresAt:      d.ExpiresAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type redemptionDocument struct {
	Code       string    `firestore:"code"`
	PaymentRef string    `firestore:"paymentRef"`
	RedeemedAt time.Time `firestore:"redeemedAt"`
}

func redemptionKey(code, paymentRef string) string {
	return code + ":" + paymentRef
}

func wrapDiscountError(op string, err error) error {
	if err == nil {
		return nil
	}
	var discountErr *repositories.DiscountError
	if errors.As(err, &discountErr) {
		if discountErr.Op == "" {
			discountErr.Op = op
		}
		return discountErr
	}
	return pfirestore.WrapError(op, err)
}

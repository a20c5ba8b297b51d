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
	productsCollection     = "products"
	slugRegistryCollection = "slugRegistry"
)

// ProductRepository persists catalogue products with a slug registry for
// unique, human-friendly lookups and an atomic stock counter.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
	slugs    *pfirestore.BaseRepository[slugDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
		slugs:    pfirestore.NewBaseRepository[slugDocument](provider, slugRegistryCollection, nil, nil),
	}, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, repositories.NewProductError(repositories.ProductErrorUnknown, "product lookup: id is required", nil)
	}

	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return domain.Product{}, repositories.NewProductError(repositories.ProductErrorNotFound, fmt.Sprintf("product %s not found", productID), err)
		}
		return domain.Product{}, wrapProductError("products.get", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if r == nil || r.slugs == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	slug = normalizeSlug(slug)
	if slug == "" {
		return domain.Product{}, repositories.NewProductError(repositories.ProductErrorUnknown, "product lookup: slug is required", nil)
	}

	entry, err := r.slugs.Get(ctx, slug)
	if err != nil {
		if isNotFound(err) {
			return domain.Product{}, repositories.NewProductError(repositories.ProductErrorNotFound, fmt.Sprintf("product slug %s not found", slug), err)
		}
		return domain.Product{}, wrapProductError("products.findBySlug", err)
	}
	return r.FindByID(ctx, entry.Data.ProductID)
}

func (r *ProductRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	if r == nil || r.products == nil {
		return nil, errors.New("product repository not initialised")
	}

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("isActive", "==", true).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, wrapProductError("products.listActive", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	return products, nil
}

// Upsert writes the product and claims its slug in the registry, releasing a
// previously held slug when it changes.
func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return domain.Product{}, repositories.NewProductError(repositories.ProductErrorUnknown, "product upsert: id is required", nil)
	}
	slug := normalizeSlug(product.Slug)
	if slug == "" {
		return domain.Product{}, repositories.NewProductError(repositories.ProductErrorUnknown, "product upsert: slug is required", nil)
	}

	product.Slug = slug
	var saved domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		productRef, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		slugRef, err := r.slugs.DocumentRef(ctx, slug)
		if err != nil {
			return err
		}

		previousSlug := ""
		snap, err := tx.Get(productRef)
		switch {
		case err == nil:
			var existing productDocument
			if err := snap.DataTo(&existing); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}
			previousSlug = existing.Slug
			if product.CreatedAt.IsZero() {
				product.CreatedAt = existing.CreatedAt
			}
		case status.Code(err) == codes.NotFound:
			// First write for this product.
		default:
			return err
		}

		slugSnap, err := tx.Get(slugRef)
		switch {
		case err == nil:
			var entry slugDocument
			if err := slugSnap.DataTo(&entry); err != nil {
				return fmt.Errorf("decode slug %s: %w", slug, err)
			}
			if entry.ProductID != productID {
				return repositories.NewProductError(repositories.ProductErrorSlugConflict, fmt.Sprintf("slug %s already in use", slug), nil)
			}
		case status.Code(err) == codes.NotFound:
			if err := tx.Set(slugRef, slugDocument{ProductID: productID, ClaimedAt: product.UpdatedAt.UTC()}); err != nil {
				return err
			}
		default:
			return err
		}

		if previousSlug != "" && previousSlug != slug {
			oldRef, err := r.slugs.DocumentRef(ctx, previousSlug)
			if err != nil {
				return err
			}
			if err := tx.Delete(oldRef); err != nil {
				return err
			}
		}

		doc := newProductDocument(product)
		if err := tx.Set(productRef, doc); err != nil {
			return err
		}
		saved = doc.toDomain(productID)
		return nil
	})
	if err != nil {
		return domain.Product{}, wrapProductError("products.upsert", err)
	}
	return saved, nil
}

// DecrementStock reduces stock by quantity only when enough remains. Two
// concurrent orders cannot both win the last unit.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return repositories.NewProductError(repositories.ProductErrorUnknown, "stock decrement: product id is required", nil)
	}
	if quantity <= 0 {
		return repositories.NewProductError(repositories.ProductErrorUnknown, "stock decrement: quantity must be > 0", nil)
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		productRef, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(productRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewProductError(repositories.ProductErrorNotFound, fmt.Sprintf("product %s not found", productID), err)
			}
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}
		if doc.StockQuantity < int64(quantity) {
			return repositories.NewProductError(repositories.ProductErrorInsufficientStock, fmt.Sprintf("product %s has %d in stock", productID, doc.StockQuantity), nil)
		}
		return tx.Update(productRef, []firestore.Update{
			{Path: "stockQuantity", Value: doc.StockQuantity - int64(quantity)},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		return wrapProductError("products.decrementStock", err)
	}
	return nil
}

// Document types -------------------------------------------------------------

type productDocument struct {
	Title          string    `firestore:"title"`
	Slug           string    `firestore:"slug"`
	Price          int64     `firestore:"price"`
	StockQuantity  int64     `firestore:"stockQuantity"`
	IsActive       bool      `firestore:"isActive"`
	VariantOptions []string  `firestore:"variantOptions,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func newProductDocument(p domain.Product) productDocument {
	return productDocument{
		Title:          strings.TrimSpace(p.Title),
		Slug:           normalizeSlug(p.Slug),
		Price:          p.Price,
		StockQuantity:  p.StockQuantity,
		IsActive:       p.IsActive,
		VariantOptions: p.VariantOptions,
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:             id,
		Title:          d.Title,
		Slug:           d.Slug,
		Price:          d.Price,
		StockQuantity:  d.StockQuantity,
		IsActive:       d.IsActive,
		VariantOptions: d.VariantOptions,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type slugDocument struct {
	ProductID string    `firestore:"productId"`
	ClaimedAt time.Time `firestore:"claimedAt"`
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func isNotFound(err error) bool {
	var repoErr *pfirestore.Error
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return status.Code(err) == codes.NotFound
}

func wrapProductError(op string, err error) error {
	if err == nil {
		return nil
	}
	var productErr *repositories.ProductError
	if errors.As(err, &productErr) {
		if productErr.Op == "" {
			productErr.Op = op
		}
		return productErr
	}
	return pfirestore.WrapError(op, err)
}

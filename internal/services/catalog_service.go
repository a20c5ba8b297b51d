package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/repositories"
)

var productSlugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var (
	// ErrCatalogInvalidInput indicates a malformed product payload.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogSlugConflict indicates the slug is already claimed by another product.
	ErrCatalogSlugConflict = errors.New("catalog: slug already in use")
)

// CatalogServiceDeps bundles collaborators required to construct a catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products repositories.ProductRepository
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return "prod_" + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]Product, error) {
	return s.products.ListActive(ctx)
}

func (s *catalogService) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Product{}, fmt.Errorf("%w: slug is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		if repositories.ProductErrorHasCode(err, repositories.ProductErrorNotFound) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return product, nil
}

func (s *catalogService) UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	if err := validateUpsertProduct(cmd); err != nil {
		return Product{}, err
	}

	now := s.clock()
	product := domain.Product{
		ID:             strings.TrimSpace(cmd.ID),
		Title:          strings.TrimSpace(cmd.Title),
		Slug:           strings.ToLower(strings.TrimSpace(cmd.Slug)),
		Price:          cmd.Price,
		StockQuantity:  cmd.StockQuantity,
		IsActive:       cmd.IsActive,
		VariantOptions: trimVariantOptions(cmd.VariantOptions),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if product.ID == "" {
		product.ID = s.newID()
	}

	stored, err := s.products.Upsert(ctx, product)
	if err != nil {
		if repositories.ProductErrorHasCode(err, repositories.ProductErrorSlugConflict) {
			return Product{}, fmt.Errorf("%w: %q", ErrCatalogSlugConflict, product.Slug)
		}
		return Product{}, err
	}

	s.logger(ctx, "catalog.product.upserted", map[string]any{
		"productId": stored.ID,
		"slug":      stored.Slug,
	})
	return stored, nil
}

func validateUpsertProduct(cmd UpsertProductCommand) error {
	if strings.TrimSpace(cmd.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrCatalogInvalidInput)
	}
	slug := strings.ToLower(strings.TrimSpace(cmd.Slug))
	if !productSlugPattern.MatchString(slug) {
		return fmt.Errorf("%w: malformed slug %q", ErrCatalogInvalidInput, cmd.Slug)
	}
	if cmd.Price <= 0 {
		return fmt.Errorf("%w: price must be > 0", ErrCatalogInvalidInput)
	}
	if cmd.StockQuantity < 0 {
		return fmt.Errorf("%w: stock must be >= 0", ErrCatalogInvalidInput)
	}
	return nil
}

func trimVariantOptions(options []string) []string {
	var cleaned []string
	for _, option := range options {
		option = strings.TrimSpace(option)
		if option != "" {
			cleaned = append(cleaned, option)
		}
	}
	return cleaned
}

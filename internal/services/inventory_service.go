package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/foxglove-goods/api/internal/repositories"
)

var (
	// ErrInventoryInvalidInput indicates a malformed availability request.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrProductNotFound indicates the product does not exist.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrProductInactive indicates the product exists but is not for sale.
	ErrProductInactive = errors.New("inventory: product inactive")
	// ErrProductVariantInvalid indicates the requested variant is not offered.
	ErrProductVariantInvalid = errors.New("inventory: variant not offered")
)

// InsufficientStockError reports how many units remain when a request cannot be met.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: product %s has %d of %d requested units", e.ProductID, e.Available, e.Requested)
}

// InventoryServiceDeps bundles collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Products repositories.ProductRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	products repositories.ProductRepository
	logger   func(context.Context, string, map[string]any)
}

var _ InventoryService = (*inventoryService)(nil)

// NewInventoryService constructs the stock guard over the product repository.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		products: deps.Products,
		logger:   logger,
	}, nil
}

func (s *inventoryService) EnsureAvailable(ctx context.Context, productID, variant string, quantity int) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	if quantity <= 0 {
		return Product{}, fmt.Errorf("%w: quantity must be > 0", ErrInventoryInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if repositories.ProductErrorHasCode(err, repositories.ProductErrorNotFound) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}

	if !product.IsActive {
		return Product{}, ErrProductInactive
	}
	if !product.HasVariant(variant) {
		return Product{}, fmt.Errorf("%w: %q", ErrProductVariantInvalid, variant)
	}
	if product.StockQuantity < int64(quantity) {
		return Product{}, &InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.StockQuantity,
		}
	}
	return product, nil
}

func (s *inventoryService) CommitStock(ctx context.Context, productID string, quantity int) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrInventoryInvalidInput)
	}

	if err := s.products.DecrementStock(ctx, productID, quantity); err != nil {
		if repositories.ProductErrorHasCode(err, repositories.ProductErrorNotFound) {
			return ErrProductNotFound
		}
		if repositories.ProductErrorHasCode(err, repositories.ProductErrorInsufficientStock) {
			return &InsufficientStockError{ProductID: productID, Requested: quantity}
		}
		return err
	}

	s.logger(ctx, "inventory.stock.committed", map[string]any{
		"productId": productID,
		"quantity":  quantity,
	})
	return nil
}

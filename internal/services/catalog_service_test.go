package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/repositories"
)

func newCatalogServiceWith(t *testing.T, repo repositories.ProductRepository) CatalogService {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products:    repo,
		Clock:       fixedClock(now),
		IDGenerator: func() string { return "prod_fixed" },
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func TestGetProductBySlug(t *testing.T) {
	repo := &stubProductRepository{
		slugFn: func(_ context.Context, slug string) (domain.Product, error) {
			if slug == "foxglove-tote" {
				return domain.Product{ID: "prod_1", Slug: slug}, nil
			}
			return domain.Product{}, repositories.NewProductError(repositories.ProductErrorNotFound, "", nil)
		},
	}
	svc := newCatalogServiceWith(t, repo)
	ctx := context.Background()

	product, err := svc.GetProductBySlug(ctx, "  Foxglove-Tote ")
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if product.ID != "prod_1" {
		t.Fatalf("unexpected product %s", product.ID)
	}

	if _, err := svc.GetProductBySlug(ctx, "missing"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.GetProductBySlug(ctx, "  "); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUpsertProductGeneratesIDAndStamps(t *testing.T) {
	var stored domain.Product
	repo := &stubProductRepository{
		upsertFn: func(_ context.Context, product domain.Product) (domain.Product, error) {
			stored = product
			return product, nil
		},
	}
	svc := newCatalogServiceWith(t, repo)

	product, err := svc.UpsertProduct(context.Background(), UpsertProductCommand{
		Title:          " Foxglove Tote ",
		Slug:           "Foxglove-Tote",
		Price:          2000,
		StockQuantity:  25,
		IsActive:       true,
		VariantOptions: []string{" olive ", "", "rust"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if product.ID != "prod_fixed" {
		t.Fatalf("expected generated id, got %s", product.ID)
	}
	if stored.Slug != "foxglove-tote" || stored.Title != "Foxglove Tote" {
		t.Fatalf("expected normalised fields, got %+v", stored)
	}
	if len(stored.VariantOptions) != 2 || stored.VariantOptions[0] != "olive" {
		t.Fatalf("expected trimmed variants, got %v", stored.VariantOptions)
	}
	if stored.CreatedAt.IsZero() || !stored.CreatedAt.Equal(stored.UpdatedAt) {
		t.Fatalf("expected timestamps stamped, got %+v", stored)
	}
}

func TestUpsertProductValidation(t *testing.T) {
	svc := newCatalogServiceWith(t, &stubProductRepository{})
	ctx := context.Background()

	valid := UpsertProductCommand{Title: "Tote", Slug: "tote", Price: 2000, StockQuantity: 5}
	mutations := map[string]func(*UpsertProductCommand){
		"missing title":  func(c *UpsertProductCommand) { c.Title = " " },
		"malformed slug": func(c *UpsertProductCommand) { c.Slug = "Not A Slug!" },
		"zero price":     func(c *UpsertProductCommand) { c.Price = 0 },
		"negative stock": func(c *UpsertProductCommand) { c.StockQuantity = -1 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cmd := valid
			mutate(&cmd)
			if _, err := svc.UpsertProduct(ctx, cmd); !errors.Is(err, ErrCatalogInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestUpsertProductSlugConflict(t *testing.T) {
	repo := &stubProductRepository{
		upsertFn: func(context.Context, domain.Product) (domain.Product, error) {
			return domain.Product{}, repositories.NewProductError(repositories.ProductErrorSlugConflict, "", nil)
		},
	}
	svc := newCatalogServiceWith(t, repo)

	_, err := svc.UpsertProduct(context.Background(), UpsertProductCommand{Title: "Tote", Slug: "tote", Price: 2000})
	if !errors.Is(err, ErrCatalogSlugConflict) {
		t.Fatalf("expected slug conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "tote") {
		t.Fatalf("expected slug in error, got %v", err)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/services"
)

func newCatalogRouter(catalog services.CatalogService, raffles services.RaffleService) chi.Router {
	r := chi.NewRouter()
	NewCatalogHandlers(catalog, raffles).Routes(r)
	return r
}

func TestGetProductBySlugHandler(t *testing.T) {
	catalog := &stubCatalogService{
		slugFn: func(_ context.Context, slug string) (services.Product, error) {
			if slug != "canvas-tote" {
				return services.Product{}, services.ErrProductNotFound
			}
			return services.Product{
				ID:        "prod_1",
				Title:     "Canvas Tote",
				Slug:      "canvas-tote",
				Price:     2000,
				IsActive:  true,
				CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	router := newCatalogRouter(catalog, &stubRaffleService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/canvas-tote", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload productPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.ID != "prod_1" || payload.Price != 2000 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListRafflesHandlerFiltersActive(t *testing.T) {
	var gotStatus services.RaffleStatus
	raffles := &stubRaffleService{
		listFn: func(_ context.Context, status services.RaffleStatus) ([]services.Raffle, error) {
			gotStatus = status
			return []services.Raffle{{ID: "raf_1", Slug: "spring-print", Status: domain.RaffleStatusActive}}, nil
		},
	}
	router := newCatalogRouter(&stubCatalogService{}, raffles)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raffles", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotStatus != domain.RaffleStatusActive {
		t.Fatalf("expected active filter, got %q", gotStatus)
	}
	var payload raffleListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Slug != "spring-print" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestGetRaffleBySlugHandlerNotFound(t *testing.T) {
	router := newCatalogRouter(&stubCatalogService{}, &stubRaffleService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raffles/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["error"] != "raffle_not_found" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

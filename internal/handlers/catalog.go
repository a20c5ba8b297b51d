package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/platform/httpx"
	"github.com/foxglove-goods/api/internal/services"
)

// CatalogHandlers serves the public product and raffle catalogue.
type CatalogHandlers struct {
	catalog services.CatalogService
	raffles services.RaffleService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(catalog services.CatalogService, raffles services.RaffleService) *CatalogHandlers {
	return &CatalogHandlers{
		catalog: catalog,
		raffles: raffles,
	}
}

// Routes registers the /catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{slug}", h.getProduct)
	r.Get("/raffles", h.listRaffles)
	r.Get("/raffles/{slug}", h.getRaffle)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(products))
	for _, product := range products {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{Items: items})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	product, err := h.catalog.GetProductBySlug(ctx, slug)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) listRaffles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.raffles == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "raffle service unavailable", http.StatusServiceUnavailable))
		return
	}

	// The public listing only ever shows raffles open for ticket sales.
	raffles, err := h.raffles.ListRaffles(ctx, domain.RaffleStatusActive)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]rafflePayload, 0, len(raffles))
	for _, raffle := range raffles {
		items = append(items, buildRafflePayload(raffle))
	}
	writeJSONResponse(w, http.StatusOK, raffleListResponse{Items: items})
}

func (h *CatalogHandlers) getRaffle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.raffles == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "raffle service unavailable", http.StatusServiceUnavailable))
		return
	}

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	raffle, err := h.raffles.GetRaffleBySlug(ctx, slug)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildRafflePayload(raffle))
}

type productListResponse struct {
	Items []productPayload `json:"items"`
}

type productPayload struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	Price          int64    `json:"price"`
	StockQuantity  int64    `json:"stock_quantity"`
	IsActive       bool     `json:"is_active"`
	VariantOptions []string `json:"variant_options,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
	UpdatedAt      string   `json:"updated_at,omitempty"`
}

type raffleListResponse struct {
	Items []rafflePayload `json:"items"`
}

type rafflePayload struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Slug              string   `json:"slug"`
	TicketPrice       int64    `json:"ticket_price"`
	MaxEntriesPerUser int64    `json:"max_entries_per_user,omitempty"`
	MaxTickets        int64    `json:"max_tickets,omitempty"`
	ClosesAt          string   `json:"closes_at,omitempty"`
	Status            string   `json:"status"`
	WinnerEntryID     string   `json:"winner_entry_id,omitempty"`
	VariantOptions    []string `json:"variant_options,omitempty"`
	CreatedAt         string   `json:"created_at,omitempty"`
	UpdatedAt         string   `json:"updated_at,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	return productPayload{
		ID:             product.ID,
		Title:          product.Title,
		Slug:           product.Slug,
		Price:          product.Price,
		StockQuantity:  product.StockQuantity,
		IsActive:       product.IsActive,
		VariantOptions: product.VariantOptions,
		CreatedAt:      formatTime(product.CreatedAt),
		UpdatedAt:      formatTime(product.UpdatedAt),
	}
}

func buildRafflePayload(raffle services.Raffle) rafflePayload {
	return rafflePayload{
		ID:                raffle.ID,
		Title:             raffle.Title,
		Slug:              raffle.Slug,
		TicketPrice:       raffle.TicketPrice,
		MaxEntriesPerUser: raffle.MaxEntriesPerUser,
		MaxTickets:        raffle.MaxTickets,
		ClosesAt:          formatTime(raffle.ClosesAt),
		Status:            string(raffle.Status),
		WinnerEntryID:     raffle.WinnerEntryID,
		VariantOptions:    raffle.VariantOptions,
		CreatedAt:         formatTime(raffle.CreatedAt),
		UpdatedAt:         formatTime(raffle.UpdatedAt),
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput), errors.Is(err, services.ErrRaffleInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrRaffleNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("raffle_not_found", "raffle not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load catalogue", http.StatusInternalServerError))
	}
}

package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/platform/httpx"
	"github.com/foxglove-goods/api/internal/services"
)

const adminTokenHeader = "X-Admin-Token"

// RequireAdminToken gates a route group behind the shared back-office token.
// An empty configured token locks the group entirely.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := strings.TrimSpace(r.Header.Get(adminTokenHeader))
			if token == "" || presented == "" ||
				subtle.ConstantTimeCompare([]byte(token), []byte(presented)) != 1 {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", "admin token required", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminHandlers exposes the back-office write surface.
type AdminHandlers struct {
	catalog   services.CatalogService
	raffles   services.RaffleService
	orders    services.OrderService
	discounts services.DiscountService
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(catalog services.CatalogService, raffles services.RaffleService, orders services.OrderService, discounts services.DiscountService) *AdminHandlers {
	return &AdminHandlers{
		catalog:   catalog,
		raffles:   raffles,
		orders:    orders,
		discounts: discounts,
	}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/products", h.upsertProduct)
	r.Post("/raffles", h.upsertRaffle)
	r.Post("/raffles/{raffleID}/winner", h.assignWinner)
	r.Get("/raffles/{raffleID}/entries", h.listEntries)
	r.Post("/raffles/{raffleID}/entries", h.addManualEntry)
	r.Delete("/entries/{entryID}", h.removeEntry)
	r.Get("/orders", h.listOrders)
	r.Post("/orders/{orderID}/status", h.transitionOrder)
	r.Get("/discounts", h.listDiscounts)
	r.Post("/discounts", h.upsertDiscount)
}

type upsertProductRequest struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	Price          int64    `json:"price"`
	StockQuantity  int64    `json:"stockQuantity"`
	IsActive       bool     `json:"isActive"`
	VariantOptions []string `json:"variantOptions"`
}

func (h *AdminHandlers) upsertProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req upsertProductRequest
	if err := decodeOrderBody(ctx, w, r, &req); err != nil {
		return
	}

	product, err := h.catalog.UpsertProduct(ctx, services.UpsertProductCommand{
		ID:             req.ID,
		Title:          req.Title,
		Slug:           req.Slug,
		Price:          req.Price,
		StockQuantity:  req.StockQuantity,
		IsActive:       req.IsActive,
		VariantOptions: req.VariantOptions,
	})
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

type upsertRaffleRequest struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Slug              string   `json:"slug"`
	TicketPrice       int64    `json:"ticketPrice"`
	MaxEntriesPerUser int64    `json:"maxEntriesPerUser"`
	MaxTickets        int64    `json:"maxTickets"`
	ClosesAt          string   `json:"closesAt"`
	Status            string   `json:"status"`
	VariantOptions    []string `json:"variantOptions"`
}

func (h *AdminHandlers) upsertRaffle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.raffles == nil {
		httpx.WriteError(ctx, w, httpx.NewError("raffle_unavailable", "raffle service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req upsertRaffleRequest
	if err := decodeOrderBody(ctx, w, r, &req); err != nil {
		return
	}

	var closesAt time.Time
	if raw := strings.TrimSpace(req.ClosesAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "closesAt must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		closesAt = parsed
	}

	raffle, err := h.raffles.UpsertRaffle(ctx, services.UpsertRaffleCommand{
		ID:                req.ID,
		Title:             req.Title,
		Slug:              req.Slug,
		TicketPrice:       req.TicketPrice,
		MaxEntriesPerUser: req.MaxEntriesPerUser,
		MaxTickets:        req.MaxTickets,
		ClosesAt:          closesAt,
		Status:            services.RaffleStatus(strings.TrimSpace(req.Status)),
		VariantOptions:    req.VariantOptions,
	})
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildRafflePayload(raffle))
}

type assignWinnerRequest struct {
	EntryID string `json:"entryId"`
}

func (h *AdminHandlers) assignWinner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.raffles == nil {
		httpx.WriteError(ctx, w, httpx.NewError("raffle_unavailable", "raffle service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req assignWinnerRequest
	if err := decodeOrderBody(ctx, w, r, &req); err != nil {
		return
	}

	raffle, err := h.raffles.AssignWinner(ctx, chi.URLParam(r, "raffleID"), req.EntryID)
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildRafflePayload(raffle))
}

type manualEntryRequest struct {
	Email       string `json:"email"`
	TicketCount int    `json:"ticketCount"`
	Variant     string `json:"variant"`
}

func (h *AdminHandlers) addManualEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.raffles == nil {
		httpx.WriteError(ctx, w, httpx.NewError("raffle_unavailable", "raffle service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req manualEntryRequest
	if err := decodeOrderBody(ctx, w, r, &req); err != nil {
		return
	}

	entry, err := h.raffles.AddManualEntry(ctx, services.ManualEntryCommand{
		RaffleID:    chi.URLParam(r, "raffleID"),
		Email:       req.Email,
		TicketCount: req.TicketCount,
		Variant:     req.Variant,
	})
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildEntryPayload(entry))
}

func (h *AdminHandlers) removeEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.raffles == nil {
		httpx.WriteError(ctx, w, httpx.NewError("raffle_unavailable", "raffle service unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.raffles.RemoveEntry(ctx, chi.URLParam(r, "entryID")); err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *AdminHandlers) listEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.raffles == nil {
		httpx.WriteError(ctx, w, httpx.NewError("raffle_unavailable", "raffle service unavailable", http.StatusServiceUnavailable))
		return
	}

	limit, ok := parseLimitParam(ctx, w, r)
	if !ok {
		return
	}

	entries, err := h.raffles.ListEntries(ctx, chi.URLParam(r, "raffleID"), limit)
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}

	items := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		items = append(items, buildEntryPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, entryListResponse{Items: items})
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	limit, ok := parseLimitParam(ctx, w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(ctx, services.OrderAdminFilter{
		Status: services.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:  limit,
	})
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}

	items := make([]adminOrderPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildAdminOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, adminOrderListResponse{Items: items})
}

type transitionOrderRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req transitionOrderRequest
	if err := decodeOrderBody(ctx, w, r, &req); err != nil {
		return
	}

	order, err := h.orders.TransitionStatus(ctx, chi.URLParam(r, "orderID"), services.OrderStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildAdminOrderPayload(order))
}

func (h *AdminHandlers) listDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_unavailable", "discount service unavailable", http.StatusServiceUnavailable))
		return
	}

	limit, ok := parseLimitParam(ctx, w, r)
	if !ok {
		return
	}

	discounts, err := h.discounts.ListDiscounts(ctx, limit)
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}

	items := make([]discountPayload, 0, len(discounts))
	for _, discount := range discounts {
		items = append(items, buildDiscountPayload(discount))
	}
	writeJSONResponse(w, http.StatusOK, discountListResponse{Items: items})
}

type upsertDiscountRequest struct {
	Code           string `json:"code"`
	Type           string `json:"type"`
	Value          int64  `json:"value"`
	MinOrderAmount int64  `json:"minOrderAmount"`
	MaxUses        int64  `json:"maxUses"`
	IsActive       bool   `json:"isActive"`
	ExpiresAt      string `json:"expiresAt"`
}

func (h *AdminHandlers) upsertDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_unavailable", "discount service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req upsertDiscountRequest
	if err := decodeOrderBody(ctx, w, r, &req); err != nil {
		return
	}

	var expiresAt time.Time
	if raw := strings.TrimSpace(req.ExpiresAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expiresAt must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		expiresAt = parsed
	}

	discount, err := h.discounts.UpsertDiscount(ctx, services.UpsertDiscountCommand{
		Code:           req.Code,
		Type:           domain.DiscountType(strings.ToLower(strings.TrimSpace(req.Type))),
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		MaxUses:        req.MaxUses,
		IsActive:       req.IsActive,
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		writeAdminError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDiscountPayload(discount))
}

type entryListResponse struct {
	Items []entryPayload `json:"items"`
}

type entryPayload struct {
	ID          string `json:"id"`
	RaffleID    string `json:"raffleId"`
	Email       string `json:"email"`
	TicketCount int64  `json:"ticketCount"`
	Variant     string `json:"variant,omitempty"`
	PaymentRef  string `json:"paymentRef,omitempty"`
	Source      string `json:"source"`
	CreatedAt   string `json:"createdAt"`
}

func buildEntryPayload(entry services.Entry) entryPayload {
	return entryPayload{
		ID:          entry.ID,
		RaffleID:    entry.RaffleID,
		Email:       entry.Email,
		TicketCount: entry.TicketCount,
		Variant:     entry.Variant,
		PaymentRef:  entry.PaymentRef,
		Source:      string(entry.Source),
		CreatedAt:   formatTime(entry.CreatedAt),
	}
}

type adminOrderListResponse struct {
	Items []adminOrderPayload `json:"items"`
}

type adminOrderPayload struct {
	ID              string `json:"id"`
	OrderNumber     string `json:"orderNumber"`
	ProductID       string `json:"productId"`
	ProductTitle    string `json:"productTitle"`
	Quantity        int64  `json:"quantity"`
	Variant         string `json:"variant,omitempty"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	ShippingName    string `json:"shippingName"`
	ShippingAddress string `json:"shippingAddress"`
	ShippingCity    string `json:"shippingCity"`
	ShippingPost    string `json:"shippingPost"`
	ShippingMethod  string `json:"shippingMethod"`
	Subtotal        int64  `json:"subtotal"`
	ShippingCost    int64  `json:"shippingCost"`
	DiscountAmount  int64  `json:"discountAmount,omitempty"`
	DiscountCode    string `json:"discountCode,omitempty"`
	Total           int64  `json:"total"`
	Status          string `json:"status"`
	PaymentRef      string `json:"paymentRef,omitempty"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
}

func buildAdminOrderPayload(order services.Order) adminOrderPayload {
	return adminOrderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		ProductID:       order.ProductID,
		ProductTitle:    order.ProductTitle,
		Quantity:        order.Quantity,
		Variant:         order.Variant,
		Email:           order.Email,
		Phone:           order.Phone,
		ShippingName:    order.ShippingName,
		ShippingAddress: order.ShippingAddress,
		ShippingCity:    order.ShippingCity,
		ShippingPost:    order.ShippingPost,
		ShippingMethod:  string(order.ShippingMethod),
		Subtotal:        order.Subtotal,
		ShippingCost:    order.ShippingCost,
		DiscountAmount:  order.DiscountAmount,
		DiscountCode:    order.DiscountCode,
		Total:           order.Total,
		Status:          string(order.Status),
		PaymentRef:      order.PaymentRef,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
}

type discountListResponse struct {
	Items []discountPayload `json:"items"`
}

type discountPayload struct {
	Code           string `json:"code"`
	Type           string `json:"type"`
	Value          int64  `json:"value"`
	MinOrderAmount int64  `json:"minOrderAmount,omitempty"`
	MaxUses        int64  `json:"maxUses,omitempty"`
	CurrentUses    int64  `json:"currentUses"`
	IsActive       bool   `json:"isActive"`
	ExpiresAt      string `json:"expiresAt,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

func buildDiscountPayload(discount services.DiscountCode) discountPayload {
	return discountPayload{
		Code:           discount.Code,
		Type:           string(discount.Type),
		Value:          discount.Value,
		MinOrderAmount: discount.MinOrderAmount,
		MaxUses:        discount.MaxUses,
		CurrentUses:    discount.CurrentUses,
		IsActive:       discount.IsActive,
		ExpiresAt:      formatTime(discount.ExpiresAt),
		CreatedAt:      formatTime(discount.CreatedAt),
		UpdatedAt:      formatTime(discount.UpdatedAt),
	}
}

func parseLimitParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
		return 0, false
	}
	return limit, true
}

func writeAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput),
		errors.Is(err, services.ErrRaffleInvalidInput),
		errors.Is(err, services.ErrDiscountInvalidInput),
		errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrRaffleVariantInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrRaffleNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("raffle_not_found", "raffle not found", http.StatusNotFound))
	case errors.Is(err, services.ErrEntryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("entry_not_found", "entry not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogSlugConflict),
		errors.Is(err, services.ErrRaffleSlugConflict):
		httpx.WriteError(ctx, w, httpx.NewError("slug_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("admin_error", "failed to process admin request", http.StatusInternalServerError))
	}
}

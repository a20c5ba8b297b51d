package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foxglove-goods/api/internal/platform/httpx"
	"github.com/foxglove-goods/api/internal/services"
)

const maxOrderBodySize = 16 * 1024

// OrderHandlers exposes public order placement and status lookup.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.placeOrder)
	r.Get("/{orderNumber}", h.getOrder)
}

type placeOrderRequest struct {
	ProductID        string `json:"productId"`
	Quantity         int    `json:"quantity"`
	Variant          string `json:"variant"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	ShippingName     string `json:"shippingName"`
	ShippingAddress  string `json:"shippingAddress"`
	ShippingCity     string `json:"shippingCity"`
	ShippingPostcode string `json:"shippingPostcode"`
	ShippingMethod   string `json:"shippingMethod"`
	PaymentMethod    string `json:"paymentMethod"`
	DiscountCode     string `json:"discountCode"`
}

type placeOrderResponse struct {
	OrderNumber string `json:"orderNumber"`
	RedirectURL string `json:"redirectUrl"`
	Total       int64  `json:"total"`
	Status      string `json:"status"`
}

// orderStatusPayload is the public view of an order. It deliberately omits
// contact and shipping details; the order number is the only credential.
type orderStatusPayload struct {
	OrderNumber    string `json:"orderNumber"`
	ProductTitle   string `json:"productTitle"`
	Quantity       int64  `json:"quantity"`
	Variant        string `json:"variant,omitempty"`
	ShippingMethod string `json:"shippingMethod"`
	Subtotal       int64  `json:"subtotal"`
	ShippingCost   int64  `json:"shippingCost"`
	DiscountAmount int64  `json:"discountAmount,omitempty"`
	Total          int64  `json:"total"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req placeOrderRequest
	if err := decodeOrderBody(ctx, w, r, &req); err != nil {
		return
	}

	checkout, err := h.orders.PlaceOrder(ctx, services.PlaceOrderCommand{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Variant:         req.Variant,
		Email:           req.Email,
		Phone:           req.Phone,
		ShippingName:    req.ShippingName,
		ShippingAddress: req.ShippingAddress,
		ShippingCity:    req.ShippingCity,
		ShippingPost:    req.ShippingPostcode,
		ShippingMethod:  req.ShippingMethod,
		PaymentMethod:   req.PaymentMethod,
		DiscountCode:    req.DiscountCode,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writePlaceOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, placeOrderResponse{
		OrderNumber: checkout.Order.OrderNumber,
		RedirectURL: checkout.RedirectURL,
		Total:       checkout.Order.Total,
		Status:      string(checkout.Order.Status),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	order, err := h.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		// Lookup failures collapse into one generic 404 so the endpoint
		// cannot be used to probe which numbers exist versus malformed ones.
		if errors.Is(err, services.ErrOrderNotFound) || errors.Is(err, services.ErrOrderInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to load order", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderStatusPayload(order))
}

func buildOrderStatusPayload(order services.Order) orderStatusPayload {
	return orderStatusPayload{
		OrderNumber:    order.OrderNumber,
		ProductTitle:   order.ProductTitle,
		Quantity:       order.Quantity,
		Variant:        order.Variant,
		ShippingMethod: string(order.ShippingMethod),
		Subtotal:       order.Subtotal,
		ShippingCost:   order.ShippingCost,
		DiscountAmount: order.DiscountAmount,
		Total:          order.Total,
		Status:         string(order.Status),
		CreatedAt:      formatTime(order.CreatedAt),
	}
}

func decodeOrderBody(ctx context.Context, w http.ResponseWriter, r *http.Request, target any) error {
	err := decodeJSONBody(r, maxOrderBodySize, target)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
	return err
}

func writePlaceOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	var stockErr *services.InsufficientStockError
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrInventoryInvalidInput),
		errors.Is(err, services.ErrProductVariantInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductInactive):
		httpx.WriteError(ctx, w, httpx.NewError("product_inactive", "product is not for sale", http.StatusConflict))
	case errors.As(err, &stockErr):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "not enough stock to fulfil the order", http.StatusConflict).
			WithDetails(map[string]any{"available": stockErr.Available}))
	case errors.Is(err, services.ErrDiscountInvalidInput),
		errors.Is(err, services.ErrDiscountNotFound),
		errors.Is(err, services.ErrDiscountInactive),
		errors.Is(err, services.ErrDiscountExpired),
		errors.Is(err, services.ErrDiscountExhausted),
		errors.Is(err, services.ErrDiscountMinAmount):
		httpx.WriteError(ctx, w, httpx.NewError("discount_rejected", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNumberExhausted):
		httpx.WriteError(ctx, w, httpx.NewError("order_number_exhausted", "unable to allocate an order number, retry shortly", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to place order", http.StatusInternalServerError))
	}
}

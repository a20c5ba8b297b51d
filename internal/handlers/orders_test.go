package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/services"
)

func newOrderRouter(orders services.OrderService) chi.Router {
	r := chi.NewRouter()
	NewOrderHandlers(orders).Routes(r)
	return r
}

func validOrderBody() string {
	return `{
		"productId": "prod_1",
		"quantity": 2,
		"email": "buyer@example.com",
		"shippingName": "Alex Doe",
		"shippingAddress": "1 High Street",
		"shippingCity": "London",
		"shippingPostcode": "N1 1AA",
		"shippingMethod": "standard"
	}`
}

func TestPlaceOrderHandler(t *testing.T) {
	var gotCmd services.PlaceOrderCommand
	orders := &stubOrderService{
		placeFn: func(_ context.Context, cmd services.PlaceOrderCommand) (services.OrderCheckout, error) {
			gotCmd = cmd
			return services.OrderCheckout{
				Order: services.Order{
					OrderNumber: "FG-ABCDEFGH",
					Total:       4599,
					Status:      domain.OrderStatusPendingPayment,
				},
				SessionID:   "cs_1",
				RedirectURL: "https://pay.example.com/cs_1",
			}, nil
		},
	}
	router := newOrderRouter(orders)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(validOrderBody()))
	req.Header.Set("Idempotency-Key", "idem-9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload placeOrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.OrderNumber != "FG-ABCDEFGH" || payload.RedirectURL != "https://pay.example.com/cs_1" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if gotCmd.ShippingPost != "N1 1AA" || gotCmd.IdempotencyKey != "idem-9" {
		t.Fatalf("unexpected command %+v", gotCmd)
	}
}

func TestPlaceOrderHandlerErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"invalid input":      {services.ErrOrderInvalidInput, http.StatusBadRequest, "invalid_request"},
		"product missing":    {services.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
		"product inactive":   {services.ErrProductInactive, http.StatusConflict, "product_inactive"},
		"insufficient stock": {&services.InsufficientStockError{ProductID: "prod_1", Requested: 5, Available: 2}, http.StatusConflict, "insufficient_stock"},
		"discount rejected":  {services.ErrDiscountExpired, http.StatusBadRequest, "discount_rejected"},
		"numbers exhausted":  {services.ErrOrderNumberExhausted, http.StatusServiceUnavailable, "order_number_exhausted"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			orders := &stubOrderService{
				placeFn: func(context.Context, services.PlaceOrderCommand) (services.OrderCheckout, error) {
					return services.OrderCheckout{}, tc.err
				},
			}
			router := newOrderRouter(orders)

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(validOrderBody()))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var payload map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload["error"] != tc.code {
				t.Fatalf("expected code %q, got %v", tc.code, payload["error"])
			}
		})
	}
}

func TestGetOrderHandlerPublicPayload(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(_ context.Context, orderNumber string) (services.Order, error) {
			if orderNumber != "FG-ABCDEFGH" {
				return services.Order{}, services.ErrOrderNotFound
			}
			return services.Order{
				OrderNumber:    "FG-ABCDEFGH",
				ProductTitle:   "Canvas Tote",
				Quantity:       2,
				Email:          "buyer@example.com",
				ShippingName:   "Alex Doe",
				ShippingMethod: domain.ShippingMethodStandard,
				Subtotal:       4000,
				ShippingCost:   599,
				Total:          4599,
				Status:         domain.OrderStatusPaid,
				CreatedAt:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	router := newOrderRouter(orders)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/FG-ABCDEFGH", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw["status"] != "paid" || raw["total"] != float64(4599) {
		t.Fatalf("unexpected payload %v", raw)
	}
	for _, hidden := range []string{"email", "shippingName", "shippingAddress"} {
		if _, ok := raw[hidden]; ok {
			t.Fatalf("public payload leaks %s", hidden)
		}
	}
}

func TestGetOrderHandlerGeneric404(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/FG-MISSING1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["error"] != "order_not_found" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/services"
)

func newAdminRouter(h *AdminHandlers) chi.Router {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestRequireAdminToken(t *testing.T) {
	handler := RequireAdminToken("sekrit")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]any{"ok": true})
	}))

	cases := map[string]struct {
		token  string
		status int
	}{
		"valid":   {"sekrit", http.StatusOK},
		"wrong":   {"guess", http.StatusUnauthorized},
		"missing": {"", http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.token != "" {
				req.Header.Set(adminTokenHeader, tc.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestRequireAdminTokenEmptyConfigLocksGroup(t *testing.T) {
	handler := RequireAdminToken("")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run without a configured token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(adminTokenHeader, "anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminUpsertRaffleParsesClosesAt(t *testing.T) {
	var gotCmd services.UpsertRaffleCommand
	raffles := &stubRaffleService{
		upsertFn: func(_ context.Context, cmd services.UpsertRaffleCommand) (services.Raffle, error) {
			gotCmd = cmd
			return services.Raffle{ID: "raf_1", Slug: cmd.Slug, Status: cmd.Status}, nil
		},
	}
	router := newAdminRouter(NewAdminHandlers(&stubCatalogService{}, raffles, &stubOrderService{}, &stubDiscountService{}))

	body := `{"title":"Spring Print","slug":"spring-print","ticketPrice":500,"closesAt":"2025-04-01T12:00:00Z","status":"active"}`
	req := httptest.NewRequest(http.MethodPost, "/raffles", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotCmd.ClosesAt.IsZero() || gotCmd.Status != domain.RaffleStatusActive {
		t.Fatalf("unexpected command %+v", gotCmd)
	}

	req = httptest.NewRequest(http.MethodPost, "/raffles", strings.NewReader(`{"title":"X","slug":"x","ticketPrice":500,"closesAt":"tomorrow"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timestamp, got %d", rec.Code)
	}
}

func TestAdminUpsertProductMapsSlugConflict(t *testing.T) {
	catalog := &stubCatalogService{
		upsertFn: func(context.Context, services.UpsertProductCommand) (services.Product, error) {
			return services.Product{}, services.ErrCatalogSlugConflict
		},
	}
	router := newAdminRouter(NewAdminHandlers(catalog, &stubRaffleService{}, &stubOrderService{}, &stubDiscountService{}))

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"title":"Tote","slug":"tote","price":2000}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestAdminAssignWinner(t *testing.T) {
	var gotRaffleID, gotEntryID string
	raffles := &stubRaffleService{
		winnerFn: func(_ context.Context, raffleID, entryID string) (services.Raffle, error) {
			gotRaffleID, gotEntryID = raffleID, entryID
			return services.Raffle{ID: raffleID, Status: domain.RaffleStatusClosed, WinnerEntryID: entryID}, nil
		},
	}
	router := newAdminRouter(NewAdminHandlers(&stubCatalogService{}, raffles, &stubOrderService{}, &stubDiscountService{}))

	req := httptest.NewRequest(http.MethodPost, "/raffles/raf_1/winner", strings.NewReader(`{"entryId":"ent_9"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotRaffleID != "raf_1" || gotEntryID != "ent_9" {
		t.Fatalf("unexpected winner call %q %q", gotRaffleID, gotEntryID)
	}
}

func TestAdminManualEntryAndRemoval(t *testing.T) {
	raffles := &stubRaffleService{
		manualFn: func(_ context.Context, cmd services.ManualEntryCommand) (services.Entry, error) {
			return services.Entry{
				ID:          "ent_1",
				RaffleID:    cmd.RaffleID,
				Email:       cmd.Email,
				TicketCount: int64(cmd.TicketCount),
				Source:      domain.EntrySourceManual,
			}, nil
		},
		removeFn: func(_ context.Context, entryID string) error {
			if entryID == "ent_gone" {
				return services.ErrEntryNotFound
			}
			return nil
		},
	}
	router := newAdminRouter(NewAdminHandlers(&stubCatalogService{}, raffles, &stubOrderService{}, &stubDiscountService{}))

	req := httptest.NewRequest(http.MethodPost, "/raffles/raf_1/entries", strings.NewReader(`{"email":"winner@example.com","ticketCount":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var payload entryPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Source != "manual" || payload.TicketCount != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/entries/ent_1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/entries/ent_gone", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing entry, got %d", rec.Code)
	}
}

func TestAdminTransitionOrderMapsConflict(t *testing.T) {
	orders := &stubOrderService{
		transitionFn: func(_ context.Context, orderID string, next services.OrderStatus) (services.Order, error) {
			if next == domain.OrderStatusShipped {
				return services.Order{}, services.ErrOrderInvalidTransition
			}
			return services.Order{ID: orderID, Status: next}, nil
		},
	}
	router := newAdminRouter(NewAdminHandlers(&stubCatalogService{}, &stubRaffleService{}, orders, &stubDiscountService{}))

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_1/status", strings.NewReader(`{"status":"processing"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/orders/ord_1/status", strings.NewReader(`{"status":"shipped"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestAdminListOrdersPassesFilter(t *testing.T) {
	var gotFilter services.OrderAdminFilter
	orders := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderAdminFilter) ([]services.Order, error) {
			gotFilter = filter
			return []services.Order{{ID: "ord_1", OrderNumber: "FG-ABCDEFGH"}}, nil
		},
	}
	router := newAdminRouter(NewAdminHandlers(&stubCatalogService{}, &stubRaffleService{}, orders, &stubDiscountService{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?status=paid&limit=25", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotFilter.Status != domain.OrderStatusPaid || gotFilter.Limit != 25 {
		t.Fatalf("unexpected filter %+v", gotFilter)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?limit=nope", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestAdminUpsertDiscount(t *testing.T) {
	var gotCmd services.UpsertDiscountCommand
	discounts := &stubDiscountService{
		upsertFn: func(_ context.Context, cmd services.UpsertDiscountCommand) (services.DiscountCode, error) {
			gotCmd = cmd
			return services.DiscountCode{Code: "LAUNCH10", Type: cmd.Type, Value: cmd.Value, IsActive: cmd.IsActive}, nil
		},
	}
	router := newAdminRouter(NewAdminHandlers(&stubCatalogService{}, &stubRaffleService{}, &stubOrderService{}, discounts))

	body := `{"code":"launch10","type":"Percentage","value":10,"isActive":true}`
	req := httptest.NewRequest(http.MethodPost, "/discounts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotCmd.Type != domain.DiscountTypePercentage || gotCmd.Value != 10 {
		t.Fatalf("unexpected command %+v", gotCmd)
	}
}

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

	"github.com/foxglove-goods/api/internal/services"
)

func newCheckoutRouter(checkout services.CheckoutService, limiter RateLimiter) chi.Router {
	r := chi.NewRouter()
	NewCheckoutHandlers(checkout, limiter).Routes(r)
	return r
}

func TestCreateRaffleSessionHandler(t *testing.T) {
	var gotCmd services.RaffleCheckoutCommand
	checkout := &stubCheckoutService{
		createFn: func(_ context.Context, cmd services.RaffleCheckoutCommand) (services.CheckoutRedirect, error) {
			gotCmd = cmd
			return services.CheckoutRedirect{
				SessionID:   "cs_123",
				RedirectURL: "https://pay.example.com/cs_123",
			}, nil
		},
	}
	router := newCheckoutRouter(checkout, nil)

	body := `{"raffleId":"raf_1","ticketCount":3,"email":"buyer@example.com","variant":"framed"}`
	req := httptest.NewRequest(http.MethodPost, "/raffle", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "idem-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload checkoutSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.URL != "https://pay.example.com/cs_123" || payload.SessionID != "cs_123" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if gotCmd.RaffleID != "raf_1" || gotCmd.TicketCount != 3 || gotCmd.IdempotencyKey != "idem-1" {
		t.Fatalf("unexpected command %+v", gotCmd)
	}
}

func TestCreateRaffleSessionHandlerErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"invalid input": {services.ErrCheckoutInvalidInput, http.StatusBadRequest, "invalid_request"},
		"not found":     {services.ErrRaffleNotFound, http.StatusNotFound, "raffle_not_found"},
		"closed":        {services.ErrRaffleClosed, http.StatusConflict, "raffle_closed"},
		"sold out":      {services.ErrRaffleSoldOut, http.StatusConflict, "raffle_sold_out"},
		"user cap":      {services.ErrTicketLimitExceeded, http.StatusConflict, "ticket_limit_exceeded"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			checkout := &stubCheckoutService{
				createFn: func(context.Context, services.RaffleCheckoutCommand) (services.CheckoutRedirect, error) {
					return services.CheckoutRedirect{}, tc.err
				},
			}
			router := newCheckoutRouter(checkout, nil)

			req := httptest.NewRequest(http.MethodPost, "/raffle", strings.NewReader(`{"raffleId":"raf_1","ticketCount":1,"email":"a@b.co"}`))
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

func TestCreateRaffleSessionHandlerRejectsBadBody(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/raffle", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateRaffleSessionHandlerRateLimited(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newSimpleRateLimiter(1, time.Minute, func() time.Time { return now })
	router := newCheckoutRouter(&stubCheckoutService{
		createFn: func(context.Context, services.RaffleCheckoutCommand) (services.CheckoutRedirect, error) {
			return services.CheckoutRedirect{SessionID: "cs_1"}, nil
		},
	}, limiter)

	body := `{"raffleId":"raf_1","ticketCount":1,"email":"a@b.co"}`
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/raffle", strings.NewReader(body))
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

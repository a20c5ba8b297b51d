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

const maxCheckoutBodySize = 8 * 1024

// CheckoutHandlers issues hosted payment sessions for raffle tickets.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	limiter  RateLimiter
}

// NewCheckoutHandlers constructs a new CheckoutHandlers instance. A nil
// limiter disables throttling.
func NewCheckoutHandlers(checkout services.CheckoutService, limiter RateLimiter) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkout: checkout,
		limiter:  limiter,
	}
}

// Routes registers the /checkout endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/raffle", h.createRaffleSession)
}

type raffleCheckoutRequest struct {
	RaffleID    string `json:"raffleId"`
	TicketCount int    `json:"ticketCount"`
	Email       string `json:"email"`
	Variant     string `json:"variant"`
}

type checkoutSessionResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

func (h *CheckoutHandlers) createRaffleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts", http.StatusTooManyRequests))
		return
	}

	var req raffleCheckoutRequest
	if err := decodeCheckoutBody(ctx, w, r, &req); err != nil {
		return
	}

	redirect, err := h.checkout.CreateRaffleSession(ctx, services.RaffleCheckoutCommand{
		RaffleID:       req.RaffleID,
		Email:          req.Email,
		TicketCount:    req.TicketCount,
		Variant:        req.Variant,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutSessionResponse{
		URL:       redirect.RedirectURL,
		SessionID: redirect.SessionID,
		ExpiresAt: formatTime(redirect.ExpiresAt),
	})
}

func decodeCheckoutBody(ctx context.Context, w http.ResponseWriter, r *http.Request, target any) error {
	err := decodeJSONBody(r, maxCheckoutBodySize, target)
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

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput), errors.Is(err, services.ErrRaffleVariantInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrRaffleNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("raffle_not_found", "raffle not found", http.StatusNotFound))
	case errors.Is(err, services.ErrRaffleClosed):
		httpx.WriteError(ctx, w, httpx.NewError("raffle_closed", "raffle is not accepting entries", http.StatusConflict))
	case errors.Is(err, services.ErrRaffleSoldOut):
		httpx.WriteError(ctx, w, httpx.NewError("raffle_sold_out", "raffle tickets are sold out", http.StatusConflict))
	case errors.Is(err, services.ErrTicketLimitExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("ticket_limit_exceeded", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to create checkout session", http.StatusInternalServerError))
	}
}

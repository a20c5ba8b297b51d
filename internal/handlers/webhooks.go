package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/foxglove-goods/api/internal/payments"
	"github.com/foxglove-goods/api/internal/platform/httpx"
	"github.com/foxglove-goods/api/internal/platform/requestctx"
	"github.com/foxglove-goods/api/internal/services"
)

// Stripe recommends tolerating payloads well past typical event sizes.
const maxWebhookBodySize = 1 << 20

const stripeSignatureHeader = "Stripe-Signature"

// WebhookHandlers verifies and reconciles PSP webhook deliveries.
type WebhookHandlers struct {
	provider payments.Provider
	webhooks services.WebhookService
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(provider payments.Provider, webhooks services.WebhookService) *WebhookHandlers {
	return &WebhookHandlers{
		provider: provider,
		webhooks: webhooks,
	}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := requestctx.Logger(ctx)

	if h.provider == nil || h.webhooks == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
		return
	}

	signature := strings.TrimSpace(r.Header.Get(stripeSignatureHeader))
	event, err := h.provider.VerifyWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			log.Warn("webhook signature verification failed",
				zap.String("remoteAddr", r.RemoteAddr),
			)
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed webhook payload", http.StatusBadRequest))
		return
	}

	if err := h.webhooks.ProcessEvent(ctx, event); err != nil {
		// A 5xx asks the PSP to redeliver; the reconciler's writes are
		// idempotent so replays are safe.
		log.Error("webhook processing failed",
			zap.String("eventId", event.ID),
			zap.String("eventType", event.Type),
			zap.Error(err),
		)
		httpx.WriteError(ctx, w, httpx.NewError("webhook_failed", "event processing failed", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}

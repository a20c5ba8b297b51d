package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foxglove-goods/api/internal/platform/httpx"
	"github.com/foxglove-goods/api/internal/services"
)

// DiscountHandlers serves the public discount validation endpoint.
type DiscountHandlers struct {
	discounts services.DiscountService
}

// NewDiscountHandlers constructs a new DiscountHandlers instance.
func NewDiscountHandlers(discounts services.DiscountService) *DiscountHandlers {
	return &DiscountHandlers{discounts: discounts}
}

// Routes registers the /discounts endpoints.
func (h *DiscountHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate", h.validate)
}

type validateDiscountRequest struct {
	Code          string `json:"code"`
	SubtotalCents int64  `json:"subtotalCents"`
}

type validateDiscountResponse struct {
	Valid               bool   `json:"valid"`
	DiscountAmountCents int64  `json:"discountAmountCents"`
	Message             string `json:"message,omitempty"`
}

func (h *DiscountHandlers) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_unavailable", "discount service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req validateDiscountRequest
	if err := decodeCheckoutBody(ctx, w, r, &req); err != nil {
		return
	}

	quote, err := h.discounts.Validate(ctx, services.ValidateDiscountCommand{
		Code:     req.Code,
		Subtotal: req.SubtotalCents,
	})
	if err != nil {
		if message, rejected := discountRejectionMessage(err); rejected {
			writeJSONResponse(w, http.StatusOK, validateDiscountResponse{
				Valid:   false,
				Message: message,
			})
			return
		}
		if errors.Is(err, services.ErrDiscountInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("discount_error", "failed to validate discount", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, validateDiscountResponse{
		Valid:               true,
		DiscountAmountCents: quote.Amount,
		Message:             "discount applied",
	})
}

// discountRejectionMessage maps business-rule failures to buyer-facing copy.
// These are normal outcomes of the endpoint, not errors.
func discountRejectionMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, services.ErrDiscountNotFound):
		return "code not recognised", true
	case errors.Is(err, services.ErrDiscountInactive):
		return "code is no longer active", true
	case errors.Is(err, services.ErrDiscountExpired):
		return "code has expired", true
	case errors.Is(err, services.ErrDiscountExhausted):
		return "code has reached its usage limit", true
	case errors.Is(err, services.ErrDiscountMinAmount):
		return "order does not meet the minimum amount for this code", true
	default:
		return "", false
	}
}

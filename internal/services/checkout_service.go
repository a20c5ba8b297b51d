package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/foxglove-goods/api/internal/payments"
	"github.com/foxglove-goods/api/internal/repositories"
)

const checkoutCurrency = "gbp"

var (
	// ErrCheckoutInvalidInput indicates a malformed checkout request.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrRaffleNotFound indicates the raffle does not exist.
	ErrRaffleNotFound = errors.New("checkout: raffle not found")
	// ErrRaffleClosed indicates the raffle is not accepting entries.
	ErrRaffleClosed = errors.New("checkout: raffle closed")
	// ErrRaffleVariantInvalid indicates the requested variant is not offered.
	ErrRaffleVariantInvalid = errors.New("checkout: variant not offered")
	// ErrTicketLimitExceeded indicates the buyer would exceed the per-user ticket cap.
	ErrTicketLimitExceeded = errors.New("checkout: ticket limit exceeded")
	// ErrRaffleSoldOut indicates the raffle's total ticket cap is reached.
	ErrRaffleSoldOut = errors.New("checkout: raffle sold out")
)

// CheckoutServiceDeps bundles collaborators required to construct a checkout service.
type CheckoutServiceDeps struct {
	Raffles       repositories.RaffleRepository
	Entries       repositories.EntryRepository
	Payments      payments.Provider
	PublicBaseURL string
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	raffles  repositories.RaffleRepository
	entries  repositories.EntryRepository
	payments payments.Provider
	baseURL  string
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs the raffle checkout session issuer.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Raffles == nil {
		return nil, errors.New("checkout service: raffle repository is required")
	}
	if deps.Entries == nil {
		return nil, errors.New("checkout service: entry repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment provider is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(deps.PublicBaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("checkout service: public base url is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		raffles:  deps.Raffles,
		entries:  deps.Entries,
		payments: deps.Payments,
		baseURL:  baseURL,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateRaffleSession issues a hosted payment session for raffle tickets. The
// per-buyer cap is checked here as a courtesy; the entry itself is only
// created once the payment webhook lands.
func (s *checkoutService) CreateRaffleSession(ctx context.Context, cmd RaffleCheckoutCommand) (CheckoutRedirect, error) {
	raffleID := strings.TrimSpace(cmd.RaffleID)
	if raffleID == "" {
		return CheckoutRedirect{}, fmt.Errorf("%w: raffle id is required", ErrCheckoutInvalidInput)
	}
	email, err := normaliseEmail(cmd.Email)
	if err != nil {
		return CheckoutRedirect{}, err
	}
	if cmd.TicketCount <= 0 {
		return CheckoutRedirect{}, fmt.Errorf("%w: ticket count must be > 0", ErrCheckoutInvalidInput)
	}

	raffle, err := s.raffles.FindByID(ctx, raffleID)
	if err != nil {
		if repositories.RaffleErrorHasCode(err, repositories.RaffleErrorNotFound) {
			return CheckoutRedirect{}, ErrRaffleNotFound
		}
		return CheckoutRedirect{}, err
	}

	now := s.clock()
	if !raffle.OpenForEntry(now) {
		return CheckoutRedirect{}, ErrRaffleClosed
	}
	variant := strings.TrimSpace(cmd.Variant)
	if !raffle.HasVariant(variant) {
		return CheckoutRedirect{}, fmt.Errorf("%w: %q", ErrRaffleVariantInvalid, variant)
	}

	if raffle.MaxEntriesPerUser > 0 {
		held, sumErr := s.entries.SumTicketsForBuyer(ctx, raffleID, email)
		if sumErr != nil {
			// The authoritative record is written by the webhook, so a failed
			// lookup degrades to skipping the courtesy check.
			s.logger(ctx, "checkout.ticket_cap.lookup_failed", map[string]any{
				"raffleId": raffleID,
				"error":    sumErr.Error(),
			})
		} else if int64(held+cmd.TicketCount) > raffle.MaxEntriesPerUser {
			return CheckoutRedirect{}, fmt.Errorf("%w: %d held, cap %d", ErrTicketLimitExceeded, held, raffle.MaxEntriesPerUser)
		}
	}
	if raffle.MaxTickets > 0 {
		sold, sumErr := s.entries.SumTickets(ctx, raffleID)
		if sumErr != nil {
			s.logger(ctx, "checkout.ticket_cap.lookup_failed", map[string]any{
				"raffleId": raffleID,
				"error":    sumErr.Error(),
			})
		} else if int64(sold+cmd.TicketCount) > raffle.MaxTickets {
			return CheckoutRedirect{}, fmt.Errorf("%w: %d sold, cap %d", ErrRaffleSoldOut, sold, raffle.MaxTickets)
		}
	}

	metadata := map[string]string{
		payments.MetadataKeyKind:        payments.CheckoutKindRaffle,
		payments.MetadataKeyRaffleID:    raffleID,
		payments.MetadataKeyTicketCount: strconv.Itoa(cmd.TicketCount),
		payments.MetadataKeyEmail:       email,
	}
	if variant != "" {
		metadata[payments.MetadataKeyVariant] = variant
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		Currency:       checkoutCurrency,
		CustomerEmail:  email,
		SuccessURL:     fmt.Sprintf("%s/raffles/%s/thanks", s.baseURL, raffle.Slug),
		CancelURL:      fmt.Sprintf("%s/raffles/%s", s.baseURL, raffle.Slug),
		Metadata:       metadata,
		IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
		Items: []payments.CheckoutLineItem{
			{
				Name:        fmt.Sprintf("%s ticket", raffle.Title),
				Description: variantDescription(variant),
				Quantity:    int64(cmd.TicketCount),
				Amount:      raffle.TicketPrice,
			},
		},
	})
	if err != nil {
		return CheckoutRedirect{}, fmt.Errorf("checkout: create session: %w", err)
	}

	s.logger(ctx, "checkout.raffle.session_created", map[string]any{
		"raffleId":    raffleID,
		"sessionId":   session.ID,
		"ticketCount": cmd.TicketCount,
	})

	return CheckoutRedirect{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

func variantDescription(variant string) string {
	if variant == "" {
		return ""
	}
	return "Variant: " + variant
}

func normaliseEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrCheckoutInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email", ErrCheckoutInvalidInput)
	}
	return email, nil
}

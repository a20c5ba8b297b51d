package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/payments"
	"github.com/foxglove-goods/api/internal/repositories"
)

// WebhookServiceDeps bundles collaborators required to construct a webhook service.
type WebhookServiceDeps struct {
	Orders    repositories.OrderRepository
	Raffles   repositories.RaffleRepository
	Entries   repositories.EntryRepository
	Discounts repositories.DiscountRepository
	Notifier  *Notifier
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type webhookService struct {
	orders    repositories.OrderRepository
	raffles   repositories.RaffleRepository
	entries   repositories.EntryRepository
	discounts repositories.DiscountRepository
	notifier  *Notifier
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

var _ WebhookService = (*webhookService)(nil)

// NewWebhookService wires dependencies into a WebhookService implementation.
func NewWebhookService(deps WebhookServiceDeps) (WebhookService, error) {
	if deps.Orders == nil {
		return nil, errors.New("webhook service: order repository is required")
	}
	if deps.Raffles == nil {
		return nil, errors.New("webhook service: raffle repository is required")
	}
	if deps.Entries == nil {
		return nil, errors.New("webhook service: entry repository is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("webhook service: discount repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &webhookService{
		orders:    deps.Orders,
		raffles:   deps.Raffles,
		entries:   deps.Entries,
		discounts: deps.Discounts,
		notifier:  deps.Notifier,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// ProcessEvent reconciles one verified PSP event. Errors are returned only for
// datastore failures, where a redelivery can succeed. Everything the PSP could
// redeliver forever without a different outcome, such as malformed metadata or
// an already-processed session, is acknowledged with a log line instead.
func (s *webhookService) ProcessEvent(ctx context.Context, event payments.WebhookEvent) error {
	if !event.SessionCompleted() {
		s.logger(ctx, "webhook.ignored", map[string]any{
			"eventId": event.ID,
			"type":    event.Type,
		})
		return nil
	}
	if event.PaymentStatus != "paid" {
		s.logger(ctx, "webhook.unpaid_session.ignored", map[string]any{
			"eventId":       event.ID,
			"sessionId":     event.SessionID,
			"paymentStatus": event.PaymentStatus,
		})
		return nil
	}
	if strings.TrimSpace(event.SessionID) == "" {
		s.logger(ctx, "webhook.malformed", map[string]any{
			"eventId": event.ID,
			"reason":  "missing session id",
		})
		return nil
	}

	switch event.Metadata[payments.MetadataKeyKind] {
	case payments.CheckoutKindOrder:
		return s.processOrderPayment(ctx, event)
	case payments.CheckoutKindRaffle:
		return s.processRafflePayment(ctx, event)
	default:
		s.logger(ctx, "webhook.malformed", map[string]any{
			"eventId":   event.ID,
			"sessionId": event.SessionID,
			"reason":    fmt.Sprintf("unknown checkout kind %q", event.Metadata[payments.MetadataKeyKind]),
		})
		return nil
	}
}

func (s *webhookService) processOrderPayment(ctx context.Context, event payments.WebhookEvent) error {
	orderID := strings.TrimSpace(event.Metadata[payments.MetadataKeyOrderID])
	if orderID == "" {
		s.logger(ctx, "webhook.malformed", map[string]any{
			"eventId":   event.ID,
			"sessionId": event.SessionID,
			"reason":    "order payment without order id",
		})
		return nil
	}

	result, err := s.orders.MarkPaid(ctx, orderID, event.SessionID, s.clock())
	if err != nil {
		if repositories.OrderErrorHasCode(err, repositories.OrderErrorNotFound) {
			// Redelivery cannot conjure the order, so acknowledge and move on.
			s.logger(ctx, "webhook.order.unknown", map[string]any{
				"eventId":   event.ID,
				"sessionId": event.SessionID,
				"orderId":   orderID,
			})
			return nil
		}
		return fmt.Errorf("webhook: mark order %s paid: %w", orderID, err)
	}
	if !result.Applied {
		s.logger(ctx, "webhook.order.duplicate", map[string]any{
			"eventId":   event.ID,
			"sessionId": event.SessionID,
			"orderId":   orderID,
		})
		return nil
	}
	order := result.Order

	// The order is paid regardless of what happens below, so the redemption is
	// logged rather than allowed to trigger a redelivery that would find the
	// payment ledger already written and skip it anyway.
	if order.DiscountCode != "" {
		redemption, err := s.discounts.Redeem(ctx, order.DiscountCode, event.SessionID, s.clock())
		switch {
		case err != nil:
			s.logger(ctx, "webhook.discount.redeem_failed", map[string]any{
				"orderId": orderID,
				"code":    order.DiscountCode,
				"error":   err.Error(),
			})
		case !redemption.Applied:
			s.logger(ctx, "webhook.discount.duplicate", map[string]any{
				"orderId": orderID,
				"code":    order.DiscountCode,
			})
		}
	}

	s.logger(ctx, "webhook.order.paid", map[string]any{
		"orderId":     orderID,
		"orderNumber": order.OrderNumber,
		"sessionId":   event.SessionID,
	})
	return nil
}

func (s *webhookService) processRafflePayment(ctx context.Context, event payments.WebhookEvent) error {
	raffleID := strings.TrimSpace(event.Metadata[payments.MetadataKeyRaffleID])
	email := strings.TrimSpace(event.Metadata[payments.MetadataKeyEmail])
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(event.CustomerEmail))
	}
	ticketCount, countErr := strconv.Atoi(event.Metadata[payments.MetadataKeyTicketCount])

	if raffleID == "" || email == "" || countErr != nil || ticketCount <= 0 {
		s.logger(ctx, "webhook.malformed", map[string]any{
			"eventId":   event.ID,
			"sessionId": event.SessionID,
			"reason":    "raffle payment with incomplete metadata",
		})
		return nil
	}

	// The raffle record is authoritative for which variants exist. Metadata
	// naming an unknown raffle or a variant outside its options is malformed
	// and must not produce an entry.
	raffle, err := s.raffles.FindByID(ctx, raffleID)
	if err != nil {
		if repositories.RaffleErrorHasCode(err, repositories.RaffleErrorNotFound) {
			s.logger(ctx, "webhook.malformed", map[string]any{
				"eventId":   event.ID,
				"sessionId": event.SessionID,
				"reason":    fmt.Sprintf("unknown raffle %q", raffleID),
			})
			return nil
		}
		return fmt.Errorf("webhook: load raffle %s: %w", raffleID, err)
	}
	variant := strings.TrimSpace(event.Metadata[payments.MetadataKeyVariant])
	if !raffle.HasVariant(variant) {
		s.logger(ctx, "webhook.malformed", map[string]any{
			"eventId":   event.ID,
			"sessionId": event.SessionID,
			"reason":    fmt.Sprintf("variant %q not offered by raffle %s", variant, raffleID),
		})
		return nil
	}

	entry := domain.Entry{
		RaffleID:    raffleID,
		Email:       email,
		TicketCount: int64(ticketCount),
		Variant:     variant,
		PaymentRef:  event.SessionID,
		Source:      domain.EntrySourceWebhook,
		CreatedAt:   s.clock(),
	}

	stored, created, err := s.entries.CreateFromPayment(ctx, entry)
	if err != nil {
		return fmt.Errorf("webhook: record entry for session %s: %w", event.SessionID, err)
	}
	if !created {
		s.logger(ctx, "webhook.entry.duplicate", map[string]any{
			"eventId":   event.ID,
			"sessionId": event.SessionID,
			"raffleId":  raffleID,
		})
		return nil
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, NotificationMessage{
			Kind:        NotificationKindEntryConfirmation,
			RaffleID:    raffleID,
			EntryID:     stored.ID,
			Email:       email,
			TicketCount: ticketCount,
		})
	}

	s.logger(ctx, "webhook.entry.recorded", map[string]any{
		"entryId":     stored.ID,
		"raffleId":    raffleID,
		"ticketCount": ticketCount,
		"sessionId":   event.SessionID,
	})
	return nil
}

package handlers

import (
	"context"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/payments"
	"github.com/foxglove-goods/api/internal/services"
)

type stubCatalogService struct {
	listFn   func(ctx context.Context) ([]services.Product, error)
	slugFn   func(ctx context.Context, slug string) (services.Product, error)
	upsertFn func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
}

func (s *stubCatalogService) ListProducts(ctx context.Context) ([]services.Product, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *stubCatalogService) GetProductBySlug(ctx context.Context, slug string) (services.Product, error) {
	if s.slugFn != nil {
		return s.slugFn(ctx, slug)
	}
	return services.Product{}, services.ErrProductNotFound
}

func (s *stubCatalogService) UpsertProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, cmd)
	}
	return services.Product{}, nil
}

type stubRaffleService struct {
	listFn        func(ctx context.Context, status services.RaffleStatus) ([]services.Raffle, error)
	getFn         func(ctx context.Context, raffleID string) (services.Raffle, error)
	slugFn        func(ctx context.Context, slug string) (services.Raffle, error)
	upsertFn      func(ctx context.Context, cmd services.UpsertRaffleCommand) (services.Raffle, error)
	winnerFn      func(ctx context.Context, raffleID, entryID string) (services.Raffle, error)
	manualFn      func(ctx context.Context, cmd services.ManualEntryCommand) (services.Entry, error)
	removeFn      func(ctx context.Context, entryID string) error
	listEntriesFn func(ctx context.Context, raffleID string, limit int) ([]services.Entry, error)
}

func (s *stubRaffleService) ListRaffles(ctx context.Context, status services.RaffleStatus) ([]services.Raffle, error) {
	if s.listFn != nil {
		return s.listFn(ctx, status)
	}
	return nil, nil
}

func (s *stubRaffleService) GetRaffle(ctx context.Context, raffleID string) (services.Raffle, error) {
	if s.getFn != nil {
		return s.getFn(ctx, raffleID)
	}
	return services.Raffle{}, services.ErrRaffleNotFound
}

func (s *stubRaffleService) GetRaffleBySlug(ctx context.Context, slug string) (services.Raffle, error) {
	if s.slugFn != nil {
		return s.slugFn(ctx, slug)
	}
	return services.Raffle{}, services.ErrRaffleNotFound
}

func (s *stubRaffleService) UpsertRaffle(ctx context.Context, cmd services.UpsertRaffleCommand) (services.Raffle, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, cmd)
	}
	return services.Raffle{}, nil
}

func (s *stubRaffleService) AssignWinner(ctx context.Context, raffleID, entryID string) (services.Raffle, error) {
	if s.winnerFn != nil {
		return s.winnerFn(ctx, raffleID, entryID)
	}
	return services.Raffle{}, nil
}

func (s *stubRaffleService) AddManualEntry(ctx context.Context, cmd services.ManualEntryCommand) (services.Entry, error) {
	if s.manualFn != nil {
		return s.manualFn(ctx, cmd)
	}
	return services.Entry{}, nil
}

func (s *stubRaffleService) RemoveEntry(ctx context.Context, entryID string) error {
	if s.removeFn != nil {
		return s.removeFn(ctx, entryID)
	}
	return nil
}

func (s *stubRaffleService) ListEntries(ctx context.Context, raffleID string, limit int) ([]services.Entry, error) {
	if s.listEntriesFn != nil {
		return s.listEntriesFn(ctx, raffleID, limit)
	}
	return nil, nil
}

type stubOrderService struct {
	placeFn      func(ctx context.Context, cmd services.PlaceOrderCommand) (services.OrderCheckout, error)
	getFn        func(ctx context.Context, orderNumber string) (services.Order, error)
	listFn       func(ctx context.Context, filter services.OrderAdminFilter) ([]services.Order, error)
	transitionFn func(ctx context.Context, orderID string, next services.OrderStatus) (services.Order, error)
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.OrderCheckout, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, cmd)
	}
	return services.OrderCheckout{}, nil
}

func (s *stubOrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderNumber)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderAdminFilter) ([]services.Order, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, orderID string, next services.OrderStatus) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, orderID, next)
	}
	return services.Order{}, nil
}

type stubDiscountService struct {
	validateFn func(ctx context.Context, cmd services.ValidateDiscountCommand) (services.DiscountQuote, error)
	listFn     func(ctx context.Context, limit int) ([]services.DiscountCode, error)
	upsertFn   func(ctx context.Context, cmd services.UpsertDiscountCommand) (services.DiscountCode, error)
}

func (s *stubDiscountService) Validate(ctx context.Context, cmd services.ValidateDiscountCommand) (services.DiscountQuote, error) {
	if s.validateFn != nil {
		return s.validateFn(ctx, cmd)
	}
	return services.DiscountQuote{}, services.ErrDiscountNotFound
}

func (s *stubDiscountService) ListDiscounts(ctx context.Context, limit int) ([]services.DiscountCode, error) {
	if s.listFn != nil {
		return s.listFn(ctx, limit)
	}
	return nil, nil
}

func (s *stubDiscountService) UpsertDiscount(ctx context.Context, cmd services.UpsertDiscountCommand) (services.DiscountCode, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, cmd)
	}
	return services.DiscountCode{}, nil
}

type stubCheckoutService struct {
	createFn func(ctx context.Context, cmd services.RaffleCheckoutCommand) (services.CheckoutRedirect, error)
}

func (s *stubCheckoutService) CreateRaffleSession(ctx context.Context, cmd services.RaffleCheckoutCommand) (services.CheckoutRedirect, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.CheckoutRedirect{}, nil
}

type stubWebhookService struct {
	processFn func(ctx context.Context, event payments.WebhookEvent) error
}

func (s *stubWebhookService) ProcessEvent(ctx context.Context, event payments.WebhookEvent) error {
	if s.processFn != nil {
		return s.processFn(ctx, event)
	}
	return nil
}

type stubSystemService struct {
	reportFn func(ctx context.Context) (services.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	if s.reportFn != nil {
		return s.reportFn(ctx)
	}
	return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
}

type stubProvider struct {
	verifyFn func(payload []byte, signature string) (payments.WebhookEvent, error)
	createFn func(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
}

func (s *stubProvider) CreateCheckoutSession(ctx context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return payments.CheckoutSession{ID: "cs_stub"}, nil
}

func (s *stubProvider) VerifyWebhook(payload []byte, signature string) (payments.WebhookEvent, error) {
	if s.verifyFn != nil {
		return s.verifyFn(payload, signature)
	}
	return payments.WebhookEvent{}, payments.ErrInvalidSignature
}

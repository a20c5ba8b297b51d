package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/foxglove-goods/api/internal/payments"
	"github.com/foxglove-goods/api/internal/platform/config"
	"github.com/foxglove-goods/api/internal/repositories"
	"github.com/foxglove-goods/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog   services.CatalogService
	Raffles   services.RaffleService
	Inventory services.InventoryService
	Discounts services.DiscountService
	Checkout  services.CheckoutService
	Orders    services.OrderService
	Webhooks  services.WebhookService
	System    services.SystemService
}

// ContainerDeps carries the external collaborators the container cannot build itself:
// the repository registry, the payment provider, and the confirmation notifier.
type ContainerDeps struct {
	Config      config.Config
	Registry    repositories.Registry
	Payments    payments.Provider
	Notifier    *services.Notifier
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries and stub providers.
func NewContainer(deps ContainerDeps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment provider is required")
	}

	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return ulid.Make().String() }
	}

	svc, err := buildServices(deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps ContainerDeps) (Services, error) {
	var svc Services
	reg := deps.Registry
	cfg := deps.Config

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Products: reg.Products(),
		Logger:   deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:    reg.Products(),
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	raffleSvc, err := services.NewRaffleService(services.RaffleServiceDeps{
		Raffles:     reg.Raffles(),
		Entries:     reg.Entries(),
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build raffle service: %w", err)
	}
	svc.Raffles = raffleSvc

	discountSvc, err := services.NewDiscountService(services.DiscountServiceDeps{
		Repository: reg.Discounts(),
		Clock:      deps.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build discount service: %w", err)
	}
	svc.Discounts = discountSvc

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Raffles:       reg.Raffles(),
		Entries:       reg.Entries(),
		Payments:      deps.Payments,
		PublicBaseURL: cfg.Checkout.PublicBaseURL,
		Clock:         deps.Clock,
		Logger:        deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	pricing, err := services.NewPricingEngine(services.PricingConfig{
		FreeShippingThreshold: cfg.Shipping.FreeShippingThreshold,
		StandardFee:           cfg.Shipping.StandardFee,
		NextDayFee:            cfg.Shipping.NextDayFee,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}
	minter := services.NewOrderNumberMinter(services.WithMintAttempts(cfg.Orders.NumberAttempts))

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        reg.Orders(),
		Inventory:     svc.Inventory,
		Discounts:     svc.Discounts,
		Pricing:       pricing,
		Minter:        minter,
		Payments:      deps.Payments,
		Notifier:      deps.Notifier,
		PublicBaseURL: cfg.Checkout.PublicBaseURL,
		Clock:         deps.Clock,
		IDGenerator:   deps.IDGenerator,
		Logger:        deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	webhookSvc, err := services.NewWebhookService(services.WebhookServiceDeps{
		Orders:    reg.Orders(),
		Raffles:   reg.Raffles(),
		Entries:   reg.Entries(),
		Discounts: reg.Discounts(),
		Notifier:  deps.Notifier,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build webhook service: %w", err)
	}
	svc.Webhooks = webhookSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            deps.Clock,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

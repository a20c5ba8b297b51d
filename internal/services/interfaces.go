package services

import (
	"context"
	"time"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/payments"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product            = domain.Product
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	Raffle             = domain.Raffle
	RaffleStatus       = domain.RaffleStatus
	Entry              = domain.Entry
	DiscountCode       = domain.DiscountCode
	ShippingMethod     = domain.ShippingMethod
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogService serves the public product catalogue and admin product writes.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
}

// UpsertProductCommand carries admin product create/update payloads.
type UpsertProductCommand struct {
	ID             string
	Title          string
	Slug           string
	Price          int64
	StockQuantity  int64
	IsActive       bool
	VariantOptions []string
}

// RaffleService manages raffles, their entries, and winner assignment.
type RaffleService interface {
	ListRaffles(ctx context.Context, status RaffleStatus) ([]Raffle, error)
	GetRaffle(ctx context.Context, raffleID string) (Raffle, error)
	GetRaffleBySlug(ctx context.Context, slug string) (Raffle, error)
	UpsertRaffle(ctx context.Context, cmd UpsertRaffleCommand) (Raffle, error)
	AssignWinner(ctx context.Context, raffleID, entryID string) (Raffle, error)
	AddManualEntry(ctx context.Context, cmd ManualEntryCommand) (Entry, error)
	RemoveEntry(ctx context.Context, entryID string) error
	ListEntries(ctx context.Context, raffleID string, limit int) ([]Entry, error)
}

// UpsertRaffleCommand carries admin raffle create/update payloads.
type UpsertRaffleCommand struct {
	ID                string
	Title             string
	Slug              string
	TicketPrice       int64
	MaxEntriesPerUser int64
	MaxTickets        int64
	ClosesAt          time.Time
	Status            RaffleStatus
	VariantOptions    []string
}

// ManualEntryCommand adds an entry on behalf of a buyer outside the payment flow.
type ManualEntryCommand struct {
	RaffleID    string
	Email       string
	TicketCount int
	Variant     string
}

// DiscountService validates discount codes against an order amount and serves admin writes.
type DiscountService interface {
	Validate(ctx context.Context, cmd ValidateDiscountCommand) (DiscountQuote, error)
	ListDiscounts(ctx context.Context, limit int) ([]DiscountCode, error)
	UpsertDiscount(ctx context.Context, cmd UpsertDiscountCommand) (DiscountCode, error)
}

// ValidateDiscountCommand asks whether a code applies to the given subtotal.
type ValidateDiscountCommand struct {
	Code     string
	Subtotal int64
}

// DiscountQuote reports the validated discount and the amount it knocks off the subtotal.
type DiscountQuote struct {
	Discount DiscountCode
	Amount   int64
}

// UpsertDiscountCommand carries admin discount create/update payloads.
type UpsertDiscountCommand struct {
	Code           string
	Type           domain.DiscountType
	Value          int64
	MinOrderAmount int64
	MaxUses        int64
	IsActive       bool
	ExpiresAt      time.Time
}

// InventoryService guards product stock before checkout and commits it after payment.
type InventoryService interface {
	// EnsureAvailable verifies the product is purchasable in the requested
	// quantity and variant without mutating stock.
	EnsureAvailable(ctx context.Context, productID, variant string, quantity int) (Product, error)
	// CommitStock decrements stock after a confirmed payment.
	CommitStock(ctx context.Context, productID string, quantity int) error
}

// CheckoutService issues PSP sessions for raffle ticket purchases.
type CheckoutService interface {
	CreateRaffleSession(ctx context.Context, cmd RaffleCheckoutCommand) (CheckoutRedirect, error)
}

// RaffleCheckoutCommand carries a buyer's raffle ticket purchase intent.
type RaffleCheckoutCommand struct {
	RaffleID       string
	Email          string
	TicketCount    int
	Variant        string
	IdempotencyKey string
}

// CheckoutRedirect points the client at the hosted payment page.
type CheckoutRedirect struct {
	SessionID   string
	RedirectURL string
	ExpiresAt   time.Time
}

// OrderService owns the order lifecycle from placement through fulfilment.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (OrderCheckout, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error)
	ListOrders(ctx context.Context, filter OrderAdminFilter) ([]Order, error)
	TransitionStatus(ctx context.Context, orderID string, next OrderStatus) (Order, error)
}

// PlaceOrderCommand carries a buyer's order submission.
type PlaceOrderCommand struct {
	ProductID       string
	Quantity        int
	Variant         string
	Email           string
	Phone           string
	ShippingName    string
	ShippingAddress string
	ShippingCity    string
	ShippingPost    string
	ShippingMethod  string
	PaymentMethod   string
	DiscountCode    string
	IdempotencyKey  string
}

// OrderCheckout pairs the pending order with its hosted payment session.
type OrderCheckout struct {
	Order       Order
	SessionID   string
	RedirectURL string
}

// OrderAdminFilter narrows admin order listings.
type OrderAdminFilter struct {
	Status OrderStatus
	Limit  int
}

// WebhookService reconciles verified PSP events against orders, entries, stock, and discounts.
type WebhookService interface {
	// ProcessEvent applies the event. A nil return acknowledges the delivery;
	// an error asks the PSP to redeliver.
	ProcessEvent(ctx context.Context, event payments.WebhookEvent) error
}

// SystemService exposes aggregated dependency health for readiness probes.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// NotificationKind distinguishes buyer notification payloads.
type NotificationKind string

const (
	// NotificationKindOrderConfirmation confirms a paid order.
	NotificationKindOrderConfirmation NotificationKind = "order_confirmation"
	// NotificationKindEntryConfirmation confirms a raffle entry.
	NotificationKindEntryConfirmation NotificationKind = "entry_confirmation"
)

// NotificationMessage is the payload delivered to the notification queue.
type NotificationMessage struct {
	Kind        NotificationKind `json:"kind"`
	OrderNumber string           `json:"orderNumber,omitempty"`
	RaffleID    string           `json:"raffleId,omitempty"`
	EntryID     string           `json:"entryId,omitempty"`
	Email       string           `json:"email"`
	Total       int64            `json:"total,omitempty"`
	TicketCount int              `json:"ticketCount,omitempty"`
	QueuedAt    time.Time        `json:"queuedAt"`
}

// NotificationPublisher publishes notification messages to the delivery queue.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, message NotificationMessage) (string, error)
}

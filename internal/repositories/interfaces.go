package repositories

import (
	"context"
	"time"

	domain "github.com/foxglove-goods/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Orders() OrderRepository
	Raffles() RaffleRepository
	Entries() EntryRepository
	Discounts() DiscountRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductRepository persists catalogue products and owns the authoritative stock counter.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	ListActive(ctx context.Context) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (domain.Product, error)
	// DecrementStock atomically reduces stock by quantity, failing with a
	// conflict when remaining stock is lower than quantity.
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

// OrderRepository persists orders together with the unique order number registry.
type OrderRepository interface {
	// CreateWithNumber inserts the order and claims its order number in the
	// same transaction. A number collision surfaces as a conflict so callers
	// can mint a fresh candidate and retry.
	CreateWithNumber(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus, now time.Time) (domain.Order, error)
	// MarkPaid transitions the order to paid and records the payment event in
	// one transaction. A replayed payment reference reports Applied=false
	// instead of transitioning twice.
	MarkPaid(ctx context.Context, orderID, paymentRef string, now time.Time) (MarkPaidResult, error)
}

// MarkPaidResult reports whether the paid transition was applied or had already happened.
type MarkPaidResult struct {
	Order   domain.Order
	Applied bool
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	Status domain.OrderStatus
	Limit  int
}

// RaffleRepository persists raffles and winner assignments.
type RaffleRepository interface {
	FindByID(ctx context.Context, raffleID string) (domain.Raffle, error)
	FindBySlug(ctx context.Context, slug string) (domain.Raffle, error)
	List(ctx context.Context, filter RaffleListFilter) ([]domain.Raffle, error)
	Upsert(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error)
	SetWinner(ctx context.Context, raffleID, entryID string, now time.Time) (domain.Raffle, error)
}

// RaffleListFilter narrows raffle listings.
type RaffleListFilter struct {
	Status domain.RaffleStatus
	Limit  int
}

// EntryRepository persists raffle entries keyed for payment idempotency.
type EntryRepository interface {
	// CreateFromPayment inserts the entry using its payment reference as the
	// document identity. A redelivered payment reports created=false and
	// returns the previously stored entry.
	CreateFromPayment(ctx context.Context, entry domain.Entry) (domain.Entry, bool, error)
	Insert(ctx context.Context, entry domain.Entry) (domain.Entry, error)
	Delete(ctx context.Context, entryID string) error
	FindByID(ctx context.Context, entryID string) (domain.Entry, error)
	ListByRaffle(ctx context.Context, raffleID string, limit int) ([]domain.Entry, error)
	SumTicketsForBuyer(ctx context.Context, raffleID, email string) (int, error)
	SumTickets(ctx context.Context, raffleID string) (int, error)
}

// DiscountRepository persists discount codes and their redemption ledger.
type DiscountRepository interface {
	FindByCode(ctx context.Context, code string) (domain.DiscountCode, error)
	List(ctx context.Context, limit int) ([]domain.DiscountCode, error)
	Upsert(ctx context.Context, discount domain.DiscountCode) (domain.DiscountCode, error)
	// Redeem increments the usage counter exactly once per payment reference.
	// A replayed payment reports Applied=false without incrementing again.
	Redeem(ctx context.Context, code, paymentRef string, now time.Time) (RedemptionResult, error)
}

// RedemptionResult reports whether the redemption counted against the cap.
type RedemptionResult struct {
	Discount domain.DiscountCode
	Applied  bool
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

package domain

import (
	"strings"
	"time"
)

// ShippingMethod enumerates the delivery options offered at checkout.
type ShippingMethod string

const (
	// ShippingMethodStandard is tracked delivery, free above the configured threshold.
	ShippingMethodStandard ShippingMethod = "standard"
	// ShippingMethodNextDay is next-working-day delivery at a flat fee.
	ShippingMethodNextDay ShippingMethod = "next_day"
)

// ParseShippingMethod normalises and validates a shipping method string.
func ParseShippingMethod(value string) (ShippingMethod, bool) {
	switch ShippingMethod(strings.ToLower(strings.TrimSpace(value))) {
	case ShippingMethodStandard:
		return ShippingMethodStandard, true
	case ShippingMethodNextDay:
		return ShippingMethodNextDay, true
	default:
		return "", false
	}
}

// PaymentMethod enumerates how a buyer settles an order.
type PaymentMethod string

const (
	// PaymentCard pays through the hosted card checkout.
	PaymentCard PaymentMethod = "card"
	// PaymentBankTransfer defers settlement to a manual bank transfer.
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// ParsePaymentMethod normalises and validates a payment method string.
// An empty value defaults to card.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return PaymentCard, true
	case PaymentCard:
		return PaymentCard, true
	case PaymentBankTransfer:
		return PaymentBankTransfer, true
	default:
		return "", false
	}
}

// Product is a limited-stock physical item sold directly.
// Prices are integer pence; StockQuantity never goes below zero.
type Product struct {
	ID             string
	Title          string
	Slug           string
	Price          int64
	StockQuantity  int64
	IsActive       bool
	VariantOptions []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasVariant reports whether the chosen variant is one of the product's options.
// Products without options accept only an empty variant.
func (p Product) HasVariant(variant string) bool {
	variant = strings.TrimSpace(variant)
	if len(p.VariantOptions) == 0 {
		return variant == ""
	}
	for _, option := range p.VariantOptions {
		if strings.EqualFold(strings.TrimSpace(option), variant) {
			return true
		}
	}
	return false
}

// OrderStatus tracks an order through payment and fulfilment.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo enforces the order lifecycle: forward one step at a time,
// with cancellation allowed from any non-terminal state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	switch s {
	case OrderStatusPendingPayment:
		return next == OrderStatusPaid
	case OrderStatusPaid:
		return next == OrderStatusProcessing
	case OrderStatusProcessing:
		return next == OrderStatusShipped
	case OrderStatusShipped:
		return next == OrderStatusDelivered
	default:
		return false
	}
}

// Order is a direct product purchase. One row per checkout submission;
// the order number is globally unique and human readable.
type Order struct {
	ID              string
	OrderNumber     string
	ProductID       string
	ProductTitle    string
	Quantity        int64
	Variant         string
	Email           string
	Phone           string
	ShippingName    string
	ShippingAddress string
	ShippingCity    string
	ShippingPost    string
	ShippingMethod  ShippingMethod
	Subtotal        int64
	ShippingCost    int64
	DiscountAmount  int64
	DiscountCode    string
	Total           int64
	Status          OrderStatus
	PaymentRef      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RaffleStatus tracks a raffle's lifecycle.
type RaffleStatus string

const (
	RaffleStatusDraft  RaffleStatus = "draft"
	RaffleStatusActive RaffleStatus = "active"
	RaffleStatusClosed RaffleStatus = "closed"
)

// Raffle is a chance-to-win listing selling tickets at a fixed pence price.
type Raffle struct {
	ID                string
	Title             string
	Slug              string
	TicketPrice       int64
	MaxEntriesPerUser int64
	MaxTickets        int64 // zero means uncapped
	ClosesAt          time.Time
	Status            RaffleStatus
	WinnerEntryID     string
	WinnerEmail       string
	VariantOptions    []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OpenForEntry reports whether new entries may be sold at the given instant.
func (r Raffle) OpenForEntry(now time.Time) bool {
	if r.Status != RaffleStatusActive {
		return false
	}
	if r.ClosesAt.IsZero() {
		return true
	}
	return now.Before(r.ClosesAt)
}

// HasVariant reports whether the chosen variant is one of the raffle's options.
func (r Raffle) HasVariant(variant string) bool {
	variant = strings.TrimSpace(variant)
	if len(r.VariantOptions) == 0 {
		return variant == ""
	}
	for _, option := range r.VariantOptions {
		if strings.EqualFold(strings.TrimSpace(option), variant) {
			return true
		}
	}
	return false
}

// EntrySource records how an entry came to exist.
type EntrySource string

const (
	// EntrySourceWebhook marks entries written by payment reconciliation.
	EntrySourceWebhook EntrySource = "webhook"
	// EntrySourceManual marks entries created by an operator.
	EntrySourceManual EntrySource = "manual"
)

// Entry is one buyer's purchased tickets for one raffle, recorded exactly
// once per honored payment. Entries are append-only; the PaymentRef doubles
// as the idempotency key for webhook-sourced rows.
type Entry struct {
	ID          string
	RaffleID    string
	Email       string
	TicketCount int64
	Variant     string
	PaymentRef  string
	Source      EntrySource
	CreatedAt   time.Time
}

// DiscountType selects how a discount code is priced.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// DiscountCode is a redeemable code; CurrentUses only ever increases and is
// incremented at most once per honored payment.
type DiscountCode struct {
	Code           string
	Type           DiscountType
	Value          int64
	MinOrderAmount int64
	MaxUses        int64 // zero means unlimited
	CurrentUses    int64
	IsActive       bool
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalizeDiscountCode folds a user-supplied code to its canonical form.
// Lookups are case-insensitive.
func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

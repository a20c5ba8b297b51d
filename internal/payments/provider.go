package payments

import (
	"context"
	"errors"
	"time"
)

// Metadata keys stamped onto checkout sessions so the webhook reconciler can
// route a completed payment back to the record it settles.
const (
	MetadataKeyKind         = "kind"
	MetadataKeyOrderID      = "orderId"
	MetadataKeyOrderNumber  = "orderNumber"
	MetadataKeyRaffleID     = "raffleId"
	MetadataKeyTicketCount  = "ticketCount"
	MetadataKeyEmail        = "email"
	MetadataKeyVariant      = "variant"
	MetadataKeyDiscountCode = "discountCode"
)

// Checkout kinds carried in session metadata.
const (
	CheckoutKindOrder  = "order"
	CheckoutKindRaffle = "raffle"
)

// ErrInvalidSignature is returned when a webhook payload fails signature verification.
var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// CheckoutLineItem describes a single line item to include in a checkout session.
type CheckoutLineItem struct {
	Name        string
	Description string
	Quantity    int64
	Amount      int64
	Currency    string
}

// CheckoutSessionRequest captures the payload required to create a checkout session.
type CheckoutSessionRequest struct {
	Currency       string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSession represents the PSP session returned to the client.
type CheckoutSession struct {
	ID          string
	RedirectURL string
	ExpiresAt   time.Time
}

// WebhookEvent is the normalised form of a verified PSP webhook delivery.
type WebhookEvent struct {
	ID            string
	Type          string
	SessionID     string
	PaymentStatus string
	AmountTotal   int64
	CustomerEmail string
	Metadata      map[string]string
	CreatedAt     time.Time
}

// SessionCompleted reports whether the event settles a checkout session.
func (e WebhookEvent) SessionCompleted() bool {
	return e.Type == "checkout.session.completed"
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	// VerifyWebhook authenticates the raw payload against the signature header
	// and decodes it. A failed signature check returns ErrInvalidSignature.
	VerifyWebhook(payload []byte, signature string) (WebhookEvent, error)
}

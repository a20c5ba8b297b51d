package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/foxglove-goods/api/internal/domain"
	pfirestore "github.com/foxglove-goods/api/internal/platform/firestore"
	"github.com/foxglove-goods/api/internal/repositories"
)

const (
	ordersCollection        = "orders"
	orderNumbersCollection  = "orderNumbers"
	paymentEventsCollection = "paymentEvents"
)

// OrderRepository persists orders alongside the order number registry and the
// payment event ledger that keeps webhook redeliveries idempotent.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	numbers  *pfirestore.BaseRepository[orderNumberDocument]
	events   *pfirestore.BaseRepository[paymentEventDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		numbers:  pfirestore.NewBaseRepository[orderNumberDocument](provider, orderNumbersCollection, nil, nil),
		events:   pfirestore.NewBaseRepository[paymentEventDocument](provider, paymentEventsCollection, nil, nil),
	}, nil
}

// CreateWithNumber inserts the order and claims its number in one transaction.
// Claiming uses Create on the registry document so a duplicate number fails
// with AlreadyExists instead of silently overwriting.
func (r *OrderRepository) CreateWithNumber(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "order create: id is required", nil)
	}
	number := strings.ToUpper(strings.TrimSpace(order.OrderNumber))
	if number == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "order create: order number is required", nil)
	}
	order.OrderNumber = number

	var created domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		numberRef, err := r.numbers.DocumentRef(ctx, number)
		if err != nil {
			return err
		}
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}

		registry := orderNumberDocument{OrderID: orderID, ClaimedAt: order.CreatedAt.UTC()}
		if err := tx.Create(numberRef, registry); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewOrderError(repositories.OrderErrorNumberConflict, fmt.Sprintf("order number %s already claimed", number), err)
			}
			return err
		}

		doc := newOrderDocument(order)
		if err := tx.Create(orderRef, doc); err != nil {
			return err
		}
		created = doc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.create", err)
	}
	return created, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "order lookup: id is required", nil)
	}

	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", orderID), err)
		}
		return domain.Order{}, wrapOrderError("orders.get", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByNumber resolves through the number registry so the lookup stays a pair
// of point reads rather than a collection scan.
func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if r == nil || r.numbers == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderNumber = strings.ToUpper(strings.TrimSpace(orderNumber))
	if orderNumber == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "order lookup: order number is required", nil)
	}

	entry, err := r.numbers.Get(ctx, orderNumber)
	if err != nil {
		if isNotFound(err) {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", orderNumber), err)
		}
		return domain.Order{}, wrapOrderError("orders.findByNumber", err)
	}
	return r.FindByID(ctx, entry.Data.OrderID)
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, wrapOrderError("orders.list", err)
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

// UpdateStatus applies a lifecycle transition after validating it against the
// order's current status inside the transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus, now time.Time) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "status update: order id is required", nil)
	}

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		doc, err := r.getOrderTx(tx, orderRef, orderID)
		if err != nil {
			return err
		}
		current := domain.OrderStatus(doc.Status)
		if !current.CanTransitionTo(next) {
			return repositories.NewOrderError(repositories.OrderErrorInvalidTransition, fmt.Sprintf("cannot move order %s from %s to %s", orderID, current, next), nil)
		}
		if err := tx.Update(orderRef, []firestore.Update{
			{Path: "status", Value: string(next)},
			{Path: "updatedAt", Value: now.UTC()},
		}); err != nil {
			return err
		}
		doc.Status = string(next)
		doc.UpdatedAt = now.UTC()
		updated = doc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.updateStatus", err)
	}
	return updated, nil
}

// MarkPaid records the payment event and transitions the order to paid in one
// transaction. The event document is keyed by the payment reference, so a
// redelivered webhook fails the Create and reports Applied=false.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID, paymentRef string, now time.Time) (repositories.MarkPaidResult, error) {
	if r == nil || r.provider == nil {
		return repositories.MarkPaidResult{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	paymentRef = strings.TrimSpace(paymentRef)
	if orderID == "" || paymentRef == "" {
		return repositories.MarkPaidResult{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "mark paid: order id and payment reference are required", nil)
	}

	var result repositories.MarkPaidResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		eventRef, err := r.events.DocumentRef(ctx, paymentRef)
		if err != nil {
			return err
		}
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}

		doc, err := r.getOrderTx(tx, orderRef, orderID)
		if err != nil {
			return err
		}

		_, eventErr := tx.Get(eventRef)
		switch {
		case eventErr == nil:
			// Replayed delivery. The first transaction already won.
			result = repositories.MarkPaidResult{Order: doc.toDomain(orderID), Applied: false}
			return nil
		case status.Code(eventErr) != codes.NotFound:
			return eventErr
		}

		current := domain.OrderStatus(doc.Status)
		if current == domain.OrderStatusPaid {
			result = repositories.MarkPaidResult{Order: doc.toDomain(orderID), Applied: false}
			return nil
		}
		if !current.CanTransitionTo(domain.OrderStatusPaid) {
			return repositories.NewOrderError(repositories.OrderErrorInvalidTransition, fmt.Sprintf("cannot mark order %s paid from %s", orderID, current), nil)
		}

		if err := tx.Create(eventRef, paymentEventDocument{
			OrderID:     orderID,
			PaymentRef:  paymentRef,
			ProcessedAt: now.UTC(),
		}); err != nil {
			return err
		}
		if err := tx.Update(orderRef, []firestore.Update{
			{Path: "status", Value: string(domain.OrderStatusPaid)},
			{Path: "paymentRef", Value: paymentRef},
			{Path: "updatedAt", Value: now.UTC()},
		}); err != nil {
			return err
		}

		doc.Status = string(domain.OrderStatusPaid)
		doc.PaymentRef = paymentRef
		doc.UpdatedAt = now.UTC()
		result = repositories.MarkPaidResult{Order: doc.toDomain(orderID), Applied: true}
		return nil
	})
	if err != nil {
		return repositories.MarkPaidResult{}, wrapOrderError("orders.markPaid", err)
	}
	return result, nil
}

func (r *OrderRepository) getOrderTx(tx *firestore.Transaction, ref *firestore.DocumentRef, orderID string) (orderDocument, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return orderDocument{}, repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", orderID), err)
		}
		return orderDocument{}, err
	}
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return orderDocument{}, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return doc, nil
}

// Document types -------------------------------------------------------------

type orderDocument struct {
	OrderNumber     string    `firestore:"orderNumber"`
	ProductID       string    `firestore:"productId"`
	ProductTitle    string    `firestore:"productTitle"`
	Quantity        int64     `firestore:"quantity"`
	Variant         string    `firestore:"variant,omitempty"`
	Email           string    `firestore:"email"`
	Phone           string    `firestore:"phone,omitempty"`
	ShippingName    string    `firestore:"shippingName"`
	ShippingAddress string    `firestore:"shippingAddress"`
	ShippingCity    string    `firestore:"shippingCity"`
	ShippingPost    string    `firestore:"shippingPost"`
	ShippingMethod  string    `firestore:"shippingMethod"`
	Subtotal        int64     `firestore:"subtotal"`
	ShippingCost    int64     `firestore:"shippingCost"`
	DiscountAmount  int64     `firestore:"discountAmount"`
	DiscountCode    string    `firestore:"discountCode,omitempty"`
	Total           int64     `firestore:"total"`
	Status          string    `firestore:"status"`
	PaymentRef      string    `firestore:"paymentRef,omitempty"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

func newOrderDocument(o domain.Order) orderDocument {
	return orderDocument{
		OrderNumber:     o.OrderNumber,
		ProductID:       o.ProductID,
		ProductTitle:    o.ProductTitle,
		Quantity:        o.Quantity,
		Variant:         o.Variant,
		Email:           strings.ToLower(strings.TrimSpace(o.Email)),
		Phone:           strings.TrimSpace(o.Phone),
		ShippingName:    o.ShippingName,
		ShippingAddress: o.ShippingAddress,
		ShippingCity:    o.ShippingCity,
		ShippingPost:    o.ShippingPost,
		ShippingMethod:  string(o.ShippingMethod),
		Subtotal:        o.Subtotal,
		ShippingCost:    o.ShippingCost,
		DiscountAmount:  o.DiscountAmount,
		DiscountCode:    o.DiscountCode,
		Total:           o.Total,
		Status:          string(o.Status),
		PaymentRef:      o.PaymentRef,
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	return domain.Order{
		ID:              id,
		OrderNumber:     d.OrderNumber,
		ProductID:       d.ProductID,
		ProductTitle:    d.ProductTitle,
		Quantity:        d.Quantity,
		Variant:         d.Variant,
		Email:           d.Email,
		Phone:           d.Phone,
		ShippingName:    d.ShippingName,
		ShippingAddress: d.ShippingAddress,
		ShippingCity:    d.ShippingCity,
		ShippingPost:    d.ShippingPost,
		ShippingMethod:  domain.ShippingMethod(d.ShippingMethod),
		Subtotal:        d.Subtotal,
		ShippingCost:    d.ShippingCost,
		DiscountAmount:  d.DiscountAmount,
		DiscountCode:    d.DiscountCode,
		Total:           d.Total,
		Status:          domain.OrderStatus(d.Status),
		PaymentRef:      d.PaymentRef,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type orderNumberDocument struct {
	OrderID   string    `firestore:"orderId"`
	ClaimedAt time.Time `firestore:"claimedAt"`
}

type paymentEventDocument struct {
	OrderID     string    `firestore:"orderId"`
	PaymentRef  string    `firestore:"paymentRef"`
	ProcessedAt time.Time `firestore:"processedAt"`
}

func wrapOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		if orderErr.Op == "" {
			orderErr.Op = op
		}
		return orderErr
	}
	return pfirestore.WrapError(op, err)
}

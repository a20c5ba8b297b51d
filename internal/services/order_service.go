package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/foxglove-goods/api/internal/domain"
	"github.com/foxglove-goods/api/internal/payments"
	"github.com/foxglove-goods/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates a malformed order submission.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the requested status change is not allowed.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
)

// OrderServiceDeps bundles collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Inventory     InventoryService
	Discounts     DiscountService
	Pricing       *PricingEngine
	Minter        *OrderNumberMinter
	Payments      payments.Provider
	Notifier      *Notifier
	PublicBaseURL string
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	inventory InventoryService
	discounts DiscountService
	pricing   *PricingEngine
	minter    *OrderNumberMinter
	payments  payments.Provider
	notifier  *Notifier
	baseURL   string
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into an OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("order service: discount service is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}
	if deps.Minter == nil {
		return nil, errors.New("order service: order number minter is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment provider is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(deps.PublicBaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("order service: public base url is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return "ord_" + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:    deps.Orders,
		inventory: deps.Inventory,
		discounts: deps.Discounts,
		pricing:   deps.Pricing,
		minter:    deps.Minter,
		payments:  deps.Payments,
		notifier:  deps.Notifier,
		baseURL:   baseURL,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// PlaceOrder validates the submission, prices it, persists the order under a
// freshly minted number, decrements stock, and hands the buyer a payment
// redirect. The decrement failure path is logged rather than rolled back; the
// order already exists and an operator resolves the discrepancy.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (OrderCheckout, error) {
	if err := validatePlaceOrder(cmd); err != nil {
		return OrderCheckout{}, err
	}
	email, err := normaliseEmail(cmd.Email)
	if err != nil {
		return OrderCheckout{}, fmt.Errorf("%w: malformed email", ErrOrderInvalidInput)
	}
	method, ok := domain.ParseShippingMethod(cmd.ShippingMethod)
	if !ok {
		return OrderCheckout{}, fmt.Errorf("%w: unknown shipping method %q", ErrOrderInvalidInput, cmd.ShippingMethod)
	}
	payMethod, ok := domain.ParsePaymentMethod(cmd.PaymentMethod)
	if !ok {
		return OrderCheckout{}, fmt.Errorf("%w: unknown payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}

	product, err := s.inventory.EnsureAvailable(ctx, cmd.ProductID, cmd.Variant, cmd.Quantity)
	if err != nil {
		return OrderCheckout{}, err
	}

	subtotal := product.Price * int64(cmd.Quantity)
	var discount *DiscountCode
	discountCode := domain.NormalizeDiscountCode(cmd.DiscountCode)
	if discountCode != "" {
		quote, err := s.discounts.Validate(ctx, ValidateDiscountCommand{Code: discountCode, Subtotal: subtotal})
		if err != nil {
			return OrderCheckout{}, err
		}
		discount = &quote.Discount
	}

	breakdown, err := s.pricing.Quote(PricingInput{
		UnitPrice:      product.Price,
		Quantity:       cmd.Quantity,
		ShippingMethod: method,
		Discount:       discount,
	})
	if err != nil {
		return OrderCheckout{}, err
	}

	now := s.clock()
	order := domain.Order{
		ID:              s.newID(),
		ProductID:       product.ID,
		ProductTitle:    product.Title,
		Quantity:        int64(cmd.Quantity),
		Variant:         strings.TrimSpace(cmd.Variant),
		Email:           email,
		Phone:           strings.TrimSpace(cmd.Phone),
		ShippingName:    strings.TrimSpace(cmd.ShippingName),
		ShippingAddress: strings.TrimSpace(cmd.ShippingAddress),
		ShippingCity:    strings.TrimSpace(cmd.ShippingCity),
		ShippingPost:    strings.TrimSpace(cmd.ShippingPost),
		ShippingMethod:  method,
		Subtotal:        breakdown.Subtotal,
		ShippingCost:    breakdown.ShippingCost,
		DiscountAmount:  breakdown.DiscountAmount,
		DiscountCode:    discountCode,
		Total:           breakdown.Total,
		Status:          domain.OrderStatusPendingPayment,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var created domain.Order
	number, err := s.minter.MintUnique(ctx, func(ctx context.Context, candidate string) error {
		order.OrderNumber = candidate
		stored, createErr := s.orders.CreateWithNumber(ctx, order)
		if createErr != nil {
			return createErr
		}
		created = stored
		return nil
	})
	if err != nil {
		return OrderCheckout{}, err
	}

	if err := s.inventory.CommitStock(ctx, created.ProductID, cmd.Quantity); err != nil {
		s.logger(ctx, "orders.stock.decrement_failed", map[string]any{
			"orderId":   created.ID,
			"productId": created.ProductID,
			"quantity":  cmd.Quantity,
			"error":     err.Error(),
		})
	}

	checkout := OrderCheckout{Order: created}
	if payMethod == domain.PaymentBankTransfer {
		checkout.RedirectURL = fmt.Sprintf("%s/orders/%s/instructions", s.baseURL, number)
	} else {
		session, err := s.payments.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
			Currency:       checkoutCurrency,
			CustomerEmail:  email,
			SuccessURL:     fmt.Sprintf("%s/orders/%s/thanks", s.baseURL, number),
			CancelURL:      fmt.Sprintf("%s/orders/%s/cancelled", s.baseURL, number),
			Metadata:       orderSessionMetadata(created),
			IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
			Items: []payments.CheckoutLineItem{
				{
					Name:        fmt.Sprintf("Order %s", number),
					Description: orderLineDescription(created),
					Quantity:    1,
					Amount:      created.Total,
				},
			},
		})
		if err != nil {
			// The pending order stays behind; it never transitions without a
			// payment event and the number registry tolerates the orphan.
			s.logger(ctx, "orders.session.create_failed", map[string]any{
				"orderId": created.ID,
				"error":   err.Error(),
			})
			return OrderCheckout{}, fmt.Errorf("order: create payment session: %w", err)
		}
		checkout.SessionID = session.ID
		checkout.RedirectURL = session.RedirectURL
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, NotificationMessage{
			Kind:        NotificationKindOrderConfirmation,
			OrderNumber: number,
			Email:       email,
			Total:       created.Total,
		})
	}

	s.logger(ctx, "orders.placed", map[string]any{
		"orderId":       created.ID,
		"orderNumber":   number,
		"total":         created.Total,
		"paymentMethod": string(payMethod),
	})

	return checkout, nil
}

func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByNumber(ctx, orderNumber)
	if err != nil {
		if repositories.OrderErrorHasCode(err, repositories.OrderErrorNotFound) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderAdminFilter) ([]Order, error) {
	if filter.Status != "" {
		if _, ok := parseOrderStatus(string(filter.Status)); !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, filter.Status)
		}
	}
	return s.orders.List(ctx, repositories.OrderListFilter{Status: filter.Status, Limit: filter.Limit})
}

func (s *orderService) TransitionStatus(ctx context.Context, orderID string, next OrderStatus) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	status, ok := parseOrderStatus(string(next))
	if !ok {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, next)
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, status, s.clock())
	if err != nil {
		switch {
		case repositories.OrderErrorHasCode(err, repositories.OrderErrorNotFound):
			return Order{}, ErrOrderNotFound
		case repositories.OrderErrorHasCode(err, repositories.OrderErrorInvalidTransition):
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidTransition, err)
		}
		return Order{}, err
	}

	s.logger(ctx, "orders.status.transitioned", map[string]any{
		"orderId": orderID,
		"status":  string(status),
	})
	return order, nil
}

func validatePlaceOrder(cmd PlaceOrderCommand) error {
	if strings.TrimSpace(cmd.ProductID) == "" {
		return fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrOrderInvalidInput)
	}
	for field, value := range map[string]string{
		"shipping name":    cmd.ShippingName,
		"shipping address": cmd.ShippingAddress,
		"shipping city":    cmd.ShippingCity,
		"shipping post":    cmd.ShippingPost,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is required", ErrOrderInvalidInput, field)
		}
	}
	return nil
}

func orderSessionMetadata(order domain.Order) map[string]string {
	metadata := map[string]string{
		payments.MetadataKeyKind:        payments.CheckoutKindOrder,
		payments.MetadataKeyOrderID:     order.ID,
		payments.MetadataKeyOrderNumber: order.OrderNumber,
		payments.MetadataKeyEmail:       order.Email,
	}
	if order.DiscountCode != "" {
		metadata[payments.MetadataKeyDiscountCode] = order.DiscountCode
	}
	return metadata
}

func orderLineDescription(order domain.Order) string {
	desc := fmt.Sprintf("%s x%d", order.ProductTitle, order.Quantity)
	if order.Variant != "" {
		desc += " (" + order.Variant + ")"
	}
	return desc
}

func parseOrderStatus(value string) (domain.OrderStatus, bool) {
	switch domain.OrderStatus(strings.ToLower(strings.TrimSpace(value))) {
	case domain.OrderStatusPendingPayment:
		return domain.OrderStatusPendingPayment, true
	case domain.OrderStatusPaid:
		return domain.OrderStatusPaid, true
	case domain.OrderStatusProcessing:
		return domain.OrderStatusProcessing, true
	case domain.OrderStatusShipped:
		return domain.OrderStatusShipped, true
	case domain.OrderStatusDelivered:
		return domain.OrderStatusDelivered, true
	case domain.OrderStatusCancelled:
		return domain.OrderStatusCancelled, true
	default:
		return "", false
	}
}

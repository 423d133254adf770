package services

import (
	"context"
	"time"

	domain "github.com/trendora/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Cart            = domain.Cart
	CartItem        = domain.CartItem
	Product         = domain.Product
	Order           = domain.Order
	OrderLineItem   = domain.OrderLineItem
	OrderStatus     = domain.OrderStatus
	OrderPayment    = domain.OrderPayment
	OrderWithOwner  = domain.OrderWithOwner
	OrderStats      = domain.OrderStats
	ShippingAddress = domain.ShippingAddress
	UserSummary     = domain.UserSummary
	ReadinessReport = domain.ReadinessReport
)

// CartService manages the per-user cart.
type CartService interface {
	GetCart(ctx context.Context, userID string) (CartView, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartView, error)
	ClearCart(ctx context.Context, userID string) error
}

// OrderService covers order creation, customer and admin queries, and status changes.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	ListMyOrders(ctx context.Context, userID string) ([]Order, error)
	ListAllOrders(ctx context.Context) ([]OrderWithOwner, error)
	GetOrder(ctx context.Context, orderID, requesterID string) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) (string, error)
	MarkOrderPaid(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error)
}

// OrderStatsService serves the admin sales dashboard.
type OrderStatsService interface {
	GetOrderStats(ctx context.Context) (OrderStats, error)
}

// PaymentService verifies payment provider callbacks and applies them to orders.
type PaymentService interface {
	VerifyRazorpayPayment(ctx context.Context, cmd RazorpayVerificationCommand) (Order, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signatureHeader string) (StripeWebhookResult, error)
}

// HealthService reports readiness of backing services.
type HealthService interface {
	Readiness(ctx context.Context) (ReadinessReport, error)
}

// CartView is a cart joined with the live catalog entries it references.
type CartView struct {
	UserID    string
	Lines     []CartLine
	Subtotal  int64
	UpdatedAt time.Time
}

// CartLine pairs a cart item with its product. Product is nil when the product was removed from
// the catalog after the item was added.
type CartLine struct {
	Item    CartItem
	Product *Product
}

// AddCartItemCommand adds or merges an item. Absolute replaces the existing quantity instead of
// incrementing it.
type AddCartItemCommand struct {
	UserID       string
	ProductID    string
	Quantity     int
	SelectedSize string
	Absolute     bool
}

// RemoveCartItemCommand removes the item keyed by product and size.
type RemoveCartItemCommand struct {
	UserID       string
	ProductID    string
	SelectedSize string
}

// CreateOrderCommand places an order from the user's server-side cart.
type CreateOrderCommand struct {
	UserID          string
	ShippingAddress ShippingAddress
	Payment         *OrderPayment
}

type CancelOrderCommand struct {
	OrderID     string
	RequesterID string
}

type UpdateOrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
	ActorID string
}

type DeleteOrderCommand struct {
	OrderID string
	ActorID string
}

// MarkOrderPaidCommand records a settled payment against an existing order.
type MarkOrderPaidCommand struct {
	OrderID    string
	Provider   string
	Reference  string
	ExternalID string
}

// RazorpayVerificationCommand carries the fields returned by Razorpay checkout.
type RazorpayVerificationCommand struct {
	UserID            string
	RazorpayOrderID   string
	RazorpayPaymentID string
	Signature         string
	ShippingAddress   ShippingAddress
}

// StripeWebhookResult describes how a Stripe event was handled.
type StripeWebhookResult struct {
	EventID   string
	EventType string
	OrderID   string
	Handled   bool
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	UserID         string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	TotalAmount    int64
	OccurredAt     time.Time
	Metadata       map[string]string
}

// OrderMetrics records order counters. Implemented by observability.OrderMetrics.
type OrderMetrics interface {
	OrderPlaced(ctx context.Context, items int)
	StatusChanged(ctx context.Context, from, to, actor string)
	StatsServed(ctx context.Context, elapsed time.Duration, cached bool)
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func noopLogger(context.Context, string, map[string]any) {}

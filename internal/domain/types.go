package domain

import (
	"time"
)

// Amounts throughout the domain are integers in the smallest currency unit.

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	// OrderStatusPending marks an order put on hold by an administrator.
	OrderStatusPending OrderStatus = "Pending"
	// OrderStatusProcessing is the initial state of every newly placed order.
	OrderStatusProcessing OrderStatus = "Processing"
	// OrderStatusShipped marks an order handed to the carrier.
	OrderStatusShipped OrderStatus = "Shipped"
	// OrderStatusDelivered marks an order received by the customer.
	OrderStatusDelivered OrderStatus = "Delivered"
	// OrderStatusCancelled is terminal for customer flows.
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// PaymentStatus tracks the settlement state recorded against an order.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// Product is the catalog view the order core depends on.
type Product struct {
	ID       string
	Name     string
	Price    int64
	ImageURL string
	Category string
	Sizes    []string
	Stock    int
}

// UserSummary is the minimal owner identity used to enrich admin order listings.
type UserSummary struct {
	ID          string
	DisplayName string
	Email       string
	IsAdmin     bool
}

// CartItem is one product/size entry within a cart.
type CartItem struct {
	ProductID    string
	Quantity     int
	SelectedSize string
}

// Matches reports whether the item shares the (product, size) key.
func (i CartItem) Matches(productID, selectedSize string) bool {
	return i.ProductID == productID && i.SelectedSize == selectedSize
}

// Cart is the per-user mutable collection of line items. A missing cart reads as empty.
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ShippingAddress captures the delivery destination; all fields are required.
type ShippingAddress struct {
	Address    string
	City       string
	PostalCode string
	Country    string
}

// OrderLineItem is frozen at order creation and never changes afterwards.
type OrderLineItem struct {
	ProductID    string
	Name         string
	Quantity     int
	UnitPrice    int64
	ImageURL     string
	SelectedSize string
	Category     string
}

// Subtotal returns quantity multiplied by unit price.
func (l OrderLineItem) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// OrderPayment records the payment reference attached to an order.
type OrderPayment struct {
	Provider   string
	Reference  string
	ExternalID string
	Status     PaymentStatus
	PaidAt     *time.Time
}

// Order is the persisted purchase record.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Items           []OrderLineItem
	ShippingAddress ShippingAddress
	TotalAmount     int64
	OrderDate       time.Time
	Status          OrderStatus
	Payment         *OrderPayment
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderWithOwner pairs an order with its owner's identity for admin views.
type OrderWithOwner struct {
	Order
	Owner UserSummary
}

// DailySales is one point of the statistics daily series.
type DailySales struct {
	Date        string
	TotalSales  int64
	TotalOrders int
}

// SalesSummary aggregates revenue over the statistics window.
type SalesSummary struct {
	TotalRevenue int64
	TotalOrders  int
}

// CategorySales aggregates line-item revenue for one product category.
type CategorySales struct {
	Category       string
	TotalRevenue   int64
	TotalItemsSold int
}

// OrderStats is the result of the statistics engine. It carries no timestamps so repeated
// reads over unchanged orders are equal.
type OrderStats struct {
	DailySeries       []DailySales
	Summary           SalesSummary
	CategoryBreakdown []CategorySales
}

// HealthStatus summarises dependency readiness.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// DependencyStatus is the outcome of probing one backing service.
type DependencyStatus struct {
	Status    HealthStatus
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// ReadinessReport aggregates dependency probes for /readyz.
type ReadinessReport struct {
	Status       HealthStatus
	Dependencies map[string]DependencyStatus
	GeneratedAt  time.Time
}

package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/trendora/api/internal/domain"
	"github.com/trendora/api/internal/platform/textutil"
	"github.com/trendora/api/internal/repositories"
)

const (
	orderEventCreated         = "order.created"
	orderEventStatusChanged   = "order.status.changed"
	orderEventDeleted         = "order.deleted"
	orderEventPaymentRecorded = "order.payment.recorded"

	orderIDPrefix     = "ord_"
	orderCounterID    = "orders"
	orderRemovedReply = "Order removed"

	actorCustomer = "customer"
	actorAdmin    = "admin"
	actorSystem   = "system"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderUnauthorized indicates the requester does not own the order.
	ErrOrderUnauthorized = errors.New("order: not authorized")
	// ErrOrderInvalidState indicates the order's current status forbids the change.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderEmptyCart indicates an order was requested from an empty cart.
	ErrOrderEmptyCart = errors.New("order: cart is empty")
	// ErrOrderDataIntegrity indicates the cart references products that no longer exist.
	ErrOrderDataIntegrity = errors.New("order: cart references unknown products")
	// ErrOrderConflict indicates a concurrent modification or duplicate write.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the backing store timed out or is unreachable.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// Statuses an administrator may assign. Processing is only ever set at creation.
var adminAssignableStatuses = []domain.OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
	domain.OrderStatusCancelled,
}

// Statuses from which the owner may no longer cancel.
var customerLockedStatuses = []domain.OrderStatus{
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Products    repositories.ProductRepository
	Users       repositories.UserRepository
	Counters    repositories.CounterRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Metrics     OrderMetrics
	StatsCache  StatsCache
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	carts         repositories.CartRepository
	products      repositories.ProductRepository
	users         repositories.UserRepository
	counters      repositories.CounterRepository
	unitOfWork    repositories.UnitOfWork
	transactional bool
	clock         func() time.Time
	newID         func() string
	events        OrderEventPublisher
	metrics       OrderMetrics
	statsCache    StatsCache
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Carts == nil:
		return nil, errors.New("order service: cart repository is required")
	case deps.Products == nil:
		return nil, errors.New("order service: product repository is required")
	case deps.Users == nil:
		return nil, errors.New("order service: user repository is required")
	case deps.Counters == nil:
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	transactional := unit != nil
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &orderService{
		orders:        deps.Orders,
		carts:         deps.Carts,
		products:      deps.Products,
		users:         deps.Users,
		counters:      deps.Counters,
		unitOfWork:    unit,
		transactional: transactional,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:      idGen,
		events:     deps.Events,
		metrics:    deps.Metrics,
		statsCache: deps.StatsCache,
		logger:     logger,
	}, nil
}

// CreateOrder snapshots the user's cart into a new Processing order and clears the cart.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	address, err := normalizeShippingAddress(cmd.ShippingAddress)
	if err != nil {
		return Order{}, err
	}

	// Checked before allocating an order number so empty carts do not consume the sequence.
	precheck, err := s.carts.GetCart(ctx, userID)
	switch {
	case isRepoNotFound(err):
		return Order{}, ErrOrderEmptyCart
	case err != nil:
		return Order{}, s.mapRepositoryError(err)
	case precheck.IsEmpty():
		return Order{}, ErrOrderEmptyCart
	}

	now := s.now()
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:              s.nextOrderID(),
		OrderNumber:     number,
		UserID:          userID,
		ShippingAddress: address,
		OrderDate:       now,
		Status:          domain.OrderStatusProcessing,
		Payment:         clonePayment(cmd.Payment),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.carts.GetCart(txCtx, userID)
		if err != nil {
			if isRepoNotFound(err) {
				return ErrOrderEmptyCart
			}
			return s.mapRepositoryError(err)
		}
		if cart.IsEmpty() {
			return ErrOrderEmptyCart
		}

		items, total, err := s.snapshotItems(txCtx, cart.Items)
		if err != nil {
			return err
		}
		order.Items = items
		order.TotalAmount = total

		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.carts.ClearCart(txCtx, userID); err != nil {
			if s.transactional {
				return s.mapRepositoryError(err)
			}
			s.logger(ctx, "order.cart.clear.failed", map[string]any{
				"orderId": order.ID,
				"userId":  userID,
				"error":   err.Error(),
			})
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if s.metrics != nil {
		s.metrics.OrderPlaced(ctx, len(order.Items))
	}
	s.invalidateStats(ctx)
	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"userId":      userID,
		"items":       len(order.Items),
		"totalAmount": order.TotalAmount,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        userID,
		CurrentStatus: string(order.Status),
		ActorID:       userID,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    now,
		Metadata:      paymentMetadata(order.Payment),
	})
	return order, nil
}

// ListMyOrders returns the user's orders, newest first.
func (s *orderService) ListMyOrders(ctx context.Context, userID string) ([]Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	sortNewestFirst(orders)
	return orders, nil
}

// ListAllOrders returns every order, newest first, with its owner's identity.
func (s *orderService) ListAllOrders(ctx context.Context) ([]OrderWithOwner, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	sortNewestFirst(orders)

	seen := make(map[string]struct{}, len(orders))
	ownerIDs := make([]string, 0, len(orders))
	for _, order := range orders {
		if _, ok := seen[order.UserID]; ok {
			continue
		}
		seen[order.UserID] = struct{}{}
		ownerIDs = append(ownerIDs, order.UserID)
	}
	owners := map[string]domain.UserSummary{}
	if len(ownerIDs) > 0 {
		owners, err = s.users.FindByIDs(ctx, ownerIDs)
		if err != nil {
			return nil, s.mapRepositoryError(err)
		}
	}

	result := make([]OrderWithOwner, 0, len(orders))
	for _, order := range orders {
		owner, ok := owners[order.UserID]
		if !ok {
			owner = domain.UserSummary{}
		}
		owner.ID = order.UserID
		result = append(result, OrderWithOwner{Order: order, Owner: owner})
	}
	return result, nil
}

// GetOrder returns an order owned by requesterID. Orders owned by someone else read as missing.
func (s *orderService) GetOrder(ctx context.Context, orderID, requesterID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	requesterID = strings.TrimSpace(requesterID)
	if orderID == "" || requesterID == "" {
		return Order{}, fmt.Errorf("%w: order id and requester are required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.UserID != requesterID {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

// CancelOrder moves the requester's order to Cancelled unless it has already shipped.
func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	requesterID := strings.TrimSpace(cmd.RequesterID)
	if orderID == "" || requesterID == "" {
		return Order{}, fmt.Errorf("%w: order id and requester are required", ErrOrderInvalidInput)
	}

	var (
		updated  Order
		previous domain.OrderStatus
		changed  bool
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if order.UserID != requesterID {
			return fmt.Errorf("%w: order %s belongs to another user", ErrOrderUnauthorized, orderID)
		}
		if slices.Contains(customerLockedStatuses, order.Status) {
			return fmt.Errorf("%w: cannot cancel an order that is %s", ErrOrderInvalidState, order.Status)
		}
		previous = order.Status
		if order.Status == domain.OrderStatusCancelled {
			updated = order
			return nil
		}
		order.Status = domain.OrderStatusCancelled
		order.UpdatedAt = s.now()
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		changed = true
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if changed {
		s.statusChanged(ctx, updated, previous, requesterID, actorCustomer)
	}
	return updated, nil
}

// UpdateOrderStatus sets an admin-assignable status regardless of the current one.
func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target, ok := parseAdminStatus(cmd.Status)
	if !ok {
		return Order{}, fmt.Errorf("%w: status %q is not assignable", ErrOrderInvalidInput, cmd.Status)
	}

	var (
		updated  Order
		previous domain.OrderStatus
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		previous = order.Status
		order.Status = target
		order.UpdatedAt = s.now()
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.statusChanged(ctx, updated, previous, cmd.ActorID, actorAdmin)
	return updated, nil
}

// DeleteOrder removes the order permanently and returns a confirmation message.
func (s *orderService) DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) (string, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return "", fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return "", s.mapRepositoryError(err)
	}

	now := s.now()
	s.invalidateStats(ctx)
	s.logger(ctx, "order.deleted", map[string]any{"orderId": orderID, "actorId": cmd.ActorID})
	s.publishEvent(ctx, OrderEvent{
		Type:       orderEventDeleted,
		OrderID:    orderID,
		ActorID:    cmd.ActorID,
		OccurredAt: now,
	})
	return orderRemovedReply, nil
}

// MarkOrderPaid records a settled payment. Repeating the same reference is a no-op.
func (s *orderService) MarkOrderPaid(ctx context.Context, cmd MarkOrderPaidCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	provider := strings.TrimSpace(cmd.Provider)
	if orderID == "" || provider == "" {
		return Order{}, fmt.Errorf("%w: order id and provider are required", ErrOrderInvalidInput)
	}

	var (
		updated Order
		changed bool
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if p := order.Payment; p != nil && p.Status == domain.PaymentStatusPaid && p.Provider == provider && p.Reference == cmd.Reference {
			updated = order
			return nil
		}
		now := s.now()
		order.Payment = &domain.OrderPayment{
			Provider:   provider,
			Reference:  strings.TrimSpace(cmd.Reference),
			ExternalID: strings.TrimSpace(cmd.ExternalID),
			Status:     domain.PaymentStatusPaid,
			PaidAt:     &now,
		}
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		changed = true
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if changed {
		s.publishEvent(ctx, OrderEvent{
			Type:          orderEventPaymentRecorded,
			OrderID:       updated.ID,
			OrderNumber:   updated.OrderNumber,
			UserID:        updated.UserID,
			CurrentStatus: string(updated.Status),
			ActorID:       actorSystem,
			TotalAmount:   updated.TotalAmount,
			OccurredAt:    updated.UpdatedAt,
			Metadata:      paymentMetadata(updated.Payment),
		})
	}
	return updated, nil
}

func (s *orderService) snapshotItems(ctx context.Context, items []domain.CartItem) ([]domain.OrderLineItem, int64, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, s.mapRepositoryError(err)
	}

	var (
		lines   = make([]domain.OrderLineItem, 0, len(items))
		total   int64
		missing []string
	)
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			missing = append(missing, item.ProductID)
			continue
		}
		if item.Quantity < 1 {
			return nil, 0, fmt.Errorf("%w: cart item %s has quantity %d", ErrOrderDataIntegrity, item.ProductID, item.Quantity)
		}
		line := domain.OrderLineItem{
			ProductID:    product.ID,
			Name:         product.Name,
			Quantity:     item.Quantity,
			UnitPrice:    product.Price,
			ImageURL:     product.ImageURL,
			SelectedSize: item.SelectedSize,
			Category:     product.Category,
		}
		total += line.Subtotal()
		lines = append(lines, line)
	}
	if len(missing) > 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrOrderDataIntegrity, strings.Join(missing, ", "))
	}
	return lines, total, nil
}

func (s *orderService) statusChanged(ctx context.Context, order Order, previous domain.OrderStatus, actorID, actor string) {
	if s.metrics != nil {
		s.metrics.StatusChanged(ctx, string(previous), string(order.Status), actor)
	}
	s.invalidateStats(ctx)
	s.logger(ctx, "order.status.changed", map[string]any{
		"orderId": order.ID,
		"from":    string(previous),
		"to":      string(order.Status),
		"actorId": actorID,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(order.Status),
		ActorID:        actorID,
		TotalAmount:    order.TotalAmount,
		OccurredAt:     order.UpdatedAt,
	})
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderCounterID, 1)
	if err != nil {
		return "", s.mapRepositoryError(err)
	}
	return fmt.Sprintf("TR-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	return s.mapRepositoryError(s.unitOfWork.RunInTx(ctx, fn))
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

// invalidateStats drops cached statistics after an order write. Failures leave the entry to expire.
func (s *orderService) invalidateStats(ctx context.Context) {
	if s.statsCache == nil {
		return
	}
	if err := s.statsCache.Delete(ctx, statsCacheKey); err != nil {
		s.logger(ctx, "order.stats.cache.invalidate.failed", map[string]any{"error": err.Error()})
	}
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func normalizeShippingAddress(addr ShippingAddress) (ShippingAddress, error) {
	normalized := ShippingAddress{
		Address:    textutil.CleanLine(addr.Address),
		City:       textutil.CleanLine(addr.City),
		PostalCode: textutil.CleanCode(addr.PostalCode),
		Country:    textutil.CleanLine(addr.Country),
	}
	var missing []string
	if normalized.Address == "" {
		missing = append(missing, "address")
	}
	if normalized.City == "" {
		missing = append(missing, "city")
	}
	if normalized.PostalCode == "" {
		missing = append(missing, "postal_code")
	}
	if normalized.Country == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return ShippingAddress{}, fmt.Errorf("%w: shipping address missing %s", ErrOrderInvalidInput, strings.Join(missing, ", "))
	}
	return normalized, nil
}

func parseAdminStatus(status OrderStatus) (domain.OrderStatus, bool) {
	trimmed := strings.TrimSpace(string(status))
	for _, candidate := range adminAssignableStatuses {
		if strings.EqualFold(trimmed, string(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

func sortNewestFirst(orders []Order) {
	slices.SortStableFunc(orders, func(a, b Order) int {
		if c := b.OrderDate.Compare(a.OrderDate); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

func clonePayment(p *OrderPayment) *OrderPayment {
	if p == nil {
		return nil
	}
	clone := *p
	if p.PaidAt != nil {
		paidAt := *p.PaidAt
		clone.PaidAt = &paidAt
	}
	return &clone
}

func paymentMetadata(p *OrderPayment) map[string]string {
	if p == nil {
		return nil
	}
	return map[string]string{
		"paymentProvider":  p.Provider,
		"paymentReference": p.Reference,
		"paymentStatus":    string(p.Status),
	}
}

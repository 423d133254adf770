package repositories

import (
	"context"
	"time"

	domain "github.com/trendora/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Carts() CartRepository
	Products() ProductRepository
	Users() UserRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Repositories invoked with the context passed to fn participate in the same transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists orders. List methods return orders sorted by order date, newest first.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	// ListPlacedSince returns orders with an order date at or after since whose status is in statuses.
	ListPlacedSince(ctx context.Context, since time.Time, statuses []domain.OrderStatus) ([]domain.Order, error)
}

// CartRepository persists per-user carts. GetCart reports a not-found error when the user has no cart.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	SaveCart(ctx context.Context, cart domain.Cart) error
	ClearCart(ctx context.Context, userID string) error
}

// ProductRepository is the read-only catalog view.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// FindByIDs omits identifiers that do not resolve.
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}

// UserRepository resolves owner identity for enrichment and role checks.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserSummary, error)
	// FindByIDs omits identifiers that do not resolve.
	FindByIDs(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error)
}

// CounterRepository allocates monotonically increasing sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository exposes status of downstream dependencies for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.ReadinessReport, error)
}

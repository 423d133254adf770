package firestore

import (
	"context"
	"errors"
	"time"

	pfirestore "github.com/trendora/api/internal/platform/firestore"
	"github.com/trendora/api/internal/repositories"
)

// Registry wires every Firestore repository behind repositories.Registry.
type Registry struct {
	*pfirestore.UnitOfWork

	provider *pfirestore.Provider
	orders   *OrderRepository
	carts    *CartRepository
	products *ProductRepository
	users    *UserRepository
	counters *CounterRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the repositories on a shared provider. Extra checks join the Firestore probe
// in readiness reports.
func NewRegistry(provider *pfirestore.Provider, timeout time.Duration, extraChecks ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	orders, err := NewOrderRepository(provider, timeout)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider, timeout)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider, timeout)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider, timeout)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	checks := append([]repositories.DependencyCheck{{Name: "firestore", Check: provider.Ping}}, extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}

	return &Registry{
		UnitOfWork: pfirestore.NewUnitOfWork(provider),
		provider:   provider,
		orders:     orders,
		carts:      carts,
		products:   products,
		users:      users,
		counters:   counters,
		health:     health,
	}, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }
func (r *Registry) Carts() repositories.CartRepository { return r.carts }
func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Users() repositories.UserRepository { return r.users }
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }
func (r *Registry) Health() repositories.HealthRepository { return r.health }

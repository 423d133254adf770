package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trendora/api/internal/platform/config"
	pfirestore "github.com/trendora/api/internal/platform/firestore"
	pmongo "github.com/trendora/api/internal/platform/mongodb"
	"github.com/trendora/api/internal/repositories"
	firestorerepo "github.com/trendora/api/internal/repositories/firestore"
	mongorepo "github.com/trendora/api/internal/repositories/mongodb"
	"github.com/trendora/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Cart     services.CartService
	Orders   services.OrderService
	Stats    services.OrderStatsService
	Payments services.PaymentService
	Health   services.HealthService
}

// Infrastructure carries optional collaborators built outside the repository layer. Nil fields
// leave the corresponding feature disabled.
type Infrastructure struct {
	Events   services.OrderEventPublisher
	Cache    services.StatsCache
	Metrics  services.OrderMetrics
	Razorpay services.RazorpaySignatureVerifier
	Stripe   services.StripeEventParser
	Logger   func(ctx context.Context, event string, fields map[string]any)
	Clock    func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Tests can supply in-memory registries.
func NewContainer(cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(cfg, reg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

// OpenRegistry connects the persistence backend selected by cfg.Database.Driver. Extra checks are
// probed alongside the database in readiness reports.
func OpenRegistry(ctx context.Context, cfg config.Config, extraChecks ...repositories.DependencyCheck) (repositories.Registry, error) {
	switch cfg.Database.Driver {
	case config.DriverFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return nil, fmt.Errorf("connect firestore: %w", err)
		}
		reg, err := firestorerepo.NewRegistry(provider, cfg.Database.OperationTimeout, extraChecks...)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, fmt.Errorf("build firestore registry: %w", err)
		}
		return reg, nil
	case config.DriverMongo:
		provider := pmongo.NewProvider(cfg.Mongo)
		if _, err := provider.Client(ctx); err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		reg, err := mongorepo.NewRegistry(provider, cfg.Database.OperationTimeout, extraChecks...)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, fmt.Errorf("build mongo registry: %w", err)
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func buildServices(cfg config.Config, reg repositories.Registry, infra Infrastructure) (Services, error) {
	var svc Services

	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:      reg.Carts(),
		Products:   reg.Products(),
		UnitOfWork: reg,
		Clock:      clock,
		Logger:     infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Carts:      reg.Carts(),
		Products:   reg.Products(),
		Users:      reg.Users(),
		Counters:   reg.Counters(),
		UnitOfWork: reg,
		Clock:      clock,
		Events:     infra.Events,
		Metrics:    infra.Metrics,
		StatsCache: infra.Cache,
		Logger:     infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	statsSvc, err := services.NewOrderStatsService(services.OrderStatsServiceDeps{
		Orders:   reg.Orders(),
		Products: reg.Products(),
		Cache:    infra.Cache,
		CacheTTL: cfg.Stats.CacheTTL,
		Clock:    clock,
		Metrics:  infra.Metrics,
		Logger:   infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order stats service: %w", err)
	}
	svc.Stats = statsSvc

	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:   orderSvc,
		Razorpay: infra.Razorpay,
		Stripe:   infra.Stripe,
		Clock:    clock,
		Logger:   infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	svc.Health = services.NewHealthService(services.HealthServiceDeps{
		Repository: reg.Health(),
		Clock:      clock,
		Logger:     infra.Logger,
	})

	return svc, nil
}

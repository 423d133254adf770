package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/trendora/api/internal/domain"
	"github.com/trendora/api/internal/platform/cache"
	"github.com/trendora/api/internal/repositories"
)

const (
	statsWindowMonths = 3
	statsDateLayout   = "2006-01-02"
	statsCacheKey     = "orders:stats:v1"
)

// Orders in these statuses count as revenue.
var revenueStatuses = []domain.OrderStatus{
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
}

// StatsCache stores computed statistics. Get reports cache.ErrCacheMiss for absent keys.
type StatsCache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// OrderStatsServiceDeps wires the statistics service.
type OrderStatsServiceDeps struct {
	Orders   repositories.OrderRepository
	Products repositories.ProductRepository
	Cache    StatsCache
	CacheTTL time.Duration
	Clock    func() time.Time
	Metrics  OrderMetrics
	Logger   func(context.Context, string, map[string]any)
}

type orderStatsService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	cache    StatsCache
	cacheTTL time.Duration
	clock    func() time.Time
	metrics  OrderMetrics
	logger   func(context.Context, string, map[string]any)
}

// NewOrderStatsService constructs the statistics service. A nil cache or non-positive TTL
// disables caching.
func NewOrderStatsService(deps OrderStatsServiceDeps) (OrderStatsService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order stats service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order stats service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	svc := &orderStatsService{
		orders:   deps.Orders,
		products: deps.Products,
		cacheTTL: deps.CacheTTL,
		clock:    func() time.Time { return clock().UTC() },
		metrics:  deps.Metrics,
		logger:   logger,
	}
	if deps.Cache != nil && deps.CacheTTL > 0 {
		svc.cache = deps.Cache
	}
	return svc, nil
}

func (s *orderStatsService) GetOrderStats(ctx context.Context) (OrderStats, error) {
	start := s.clock()

	if s.cache != nil {
		var cached OrderStats
		err := s.cache.Get(ctx, statsCacheKey, &cached)
		if err == nil {
			s.served(ctx, start, true)
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger(ctx, "order.stats.cache.read.failed", map[string]any{"error": err.Error()})
		}
	}

	now := s.clock()
	windowStart := StatsWindowStart(now)
	orders, err := s.orders.ListPlacedSince(ctx, windowStart, revenueStatuses)
	if err != nil {
		return OrderStats{}, mapStatsRepositoryError(err)
	}

	productIDs := collectProductIDs(orders)
	products := map[string]domain.Product{}
	if len(productIDs) > 0 {
		products, err = s.products.FindByIDs(ctx, productIDs)
		if err != nil {
			return OrderStats{}, mapStatsRepositoryError(err)
		}
	}

	stats := ComputeOrderStats(orders, products, windowStart)

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.cacheTTL); err != nil {
			s.logger(ctx, "order.stats.cache.write.failed", map[string]any{"error": err.Error()})
		}
	}
	s.served(ctx, start, false)
	return stats, nil
}

func (s *orderStatsService) served(ctx context.Context, start time.Time, cached bool) {
	if s.metrics != nil {
		s.metrics.StatsServed(ctx, s.clock().Sub(start), cached)
	}
}

// StatsWindowStart returns the inclusive lower bound of the statistics window: three calendar
// months before now, in UTC.
func StatsWindowStart(now time.Time) time.Time {
	return now.UTC().AddDate(0, -statsWindowMonths, 0)
}

// ComputeOrderStats aggregates orders placed at or after windowStart in a revenue status.
// Line-item categories come from the live catalog entry when present, otherwise from the
// snapshot taken at order time; items with neither are left out of the breakdown. A product
// moved to another category carries its historical revenue with it. The result is fully
// ordered and independent of input order.
func ComputeOrderStats(orders []domain.Order, products map[string]domain.Product, windowStart time.Time) domain.OrderStats {
	stats := domain.OrderStats{
		DailySeries:       []domain.DailySales{},
		CategoryBreakdown: []domain.CategorySales{},
	}

	daily := map[string]*domain.DailySales{}
	categories := map[string]*domain.CategorySales{}

	for _, order := range orders {
		if order.OrderDate.Before(windowStart) || !slices.Contains(revenueStatuses, order.Status) {
			continue
		}

		stats.Summary.TotalRevenue += order.TotalAmount
		stats.Summary.TotalOrders++

		day := order.OrderDate.UTC().Format(statsDateLayout)
		bucket, ok := daily[day]
		if !ok {
			bucket = &domain.DailySales{Date: day}
			daily[day] = bucket
		}
		bucket.TotalSales += order.TotalAmount
		bucket.TotalOrders++

		for _, item := range order.Items {
			category := resolveCategory(item, products)
			if category == "" {
				continue
			}
			entry, ok := categories[category]
			if !ok {
				entry = &domain.CategorySales{Category: category}
				categories[category] = entry
			}
			entry.TotalRevenue += item.Subtotal()
			entry.TotalItemsSold += item.Quantity
		}
	}

	for _, bucket := range daily {
		stats.DailySeries = append(stats.DailySeries, *bucket)
	}
	slices.SortFunc(stats.DailySeries, func(a, b domain.DailySales) int {
		return strings.Compare(a.Date, b.Date)
	})

	for _, entry := range categories {
		stats.CategoryBreakdown = append(stats.CategoryBreakdown, *entry)
	}
	slices.SortFunc(stats.CategoryBreakdown, func(a, b domain.CategorySales) int {
		if c := cmp.Compare(b.TotalRevenue, a.TotalRevenue); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})

	return stats
}

func resolveCategory(item domain.OrderLineItem, products map[string]domain.Product) string {
	if product, ok := products[item.ProductID]; ok {
		if category := strings.TrimSpace(product.Category); category != "" {
			return category
		}
	}
	return strings.TrimSpace(item.Category)
}

func collectProductIDs(orders []domain.Order) []string {
	seen := map[string]struct{}{}
	ids := []string{}
	for _, order := range orders {
		for _, item := range order.Items {
			if _, ok := seen[item.ProductID]; ok || item.ProductID == "" {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

func mapStatsRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return err
}

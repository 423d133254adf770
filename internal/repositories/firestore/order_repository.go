package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	domain "github.com/trendora/api/internal/domain"
	pfirestore "github.com/trendora/api/internal/platform/firestore"
	"github.com/trendora/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists orders in Firestore.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider, timeout time.Duration) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, pfirestore.WithOperationTimeout[orderDocument](timeout)),
	}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.base.Create(ctx, order.ID, encodeOrder(order))
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.base.Replace(ctx, order.ID, encodeOrder(order))
}

func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	return r.base.Delete(ctx, orderID, true)
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID).OrderBy("orderDate", firestore.Desc)
	})
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("orderDate", firestore.Desc)
	})
}

func (r *OrderRepository) ListPlacedSince(ctx context.Context, since time.Time, statuses []domain.OrderStatus) ([]domain.Order, error) {
	if len(statuses) == 0 {
		return []domain.Order{}, nil
	}
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderDate", ">=", since.UTC()).
			Where("status", "in", values).
			OrderBy("orderDate", firestore.Desc)
	})
}

func (r *OrderRepository) list(ctx context.Context, build pfirestore.QueryBuilder) ([]domain.Order, error) {
	docs, err := r.base.Query(ctx, build)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

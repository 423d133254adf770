package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/trendora/api/internal/domain"
	pmongo "github.com/trendora/api/internal/platform/mongodb"
	"github.com/trendora/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists orders in MongoDB.
type OrderRepository struct {
	collection
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a MongoDB-backed order repository.
func NewOrderRepository(provider *pmongo.Provider, timeout time.Duration) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires mongodb provider")
	}
	return &OrderRepository{collection{provider: provider, name: ordersCollection, timeout: timeout}}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	ctx, coll, cancel, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	_, err = coll.InsertOne(ctx, encodeOrder(order))
	return pmongo.WrapError(r.op("insert"), err)
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	ctx, coll, cancel, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": order.ID}, encodeOrder(order))
	if err != nil {
		return pmongo.WrapError(r.op("update"), err)
	}
	if res.MatchedCount == 0 {
		return pmongo.NotFound(r.op("update"), "order %s not found", order.ID)
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	ctx, coll, cancel, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	res, err := coll.DeleteOne(ctx, bson.M{"_id": orderID})
	if err != nil {
		return pmongo.WrapError(r.op("delete"), err)
	}
	if res.DeletedCount == 0 {
		return pmongo.NotFound(r.op("delete"), "order %s not found", orderID)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	ctx, coll, cancel, err := r.open(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	defer cancel()
	var doc orderDocument
	if err := coll.FindOne(ctx, bson.M{"_id": orderID}).Decode(&doc); err != nil {
		return domain.Order{}, pmongo.WrapError(r.op("find"), err)
	}
	return doc.toDomain(), nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, bson.M{"userId": userID})
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, bson.M{})
}

func (r *OrderRepository) ListPlacedSince(ctx context.Context, since time.Time, statuses []domain.OrderStatus) ([]domain.Order, error) {
	if len(statuses) == 0 {
		return []domain.Order{}, nil
	}
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	return r.list(ctx, bson.M{
		"orderDate": bson.M{"$gte": since.UTC()},
		"status":    bson.M{"$in": values},
	})
}

func (r *OrderRepository) list(ctx context.Context, filter bson.M) ([]domain.Order, error) {
	ctx, coll, cancel, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "orderDate", Value: -1}}))
	if err != nil {
		return nil, pmongo.WrapError(r.op("list"), err)
	}
	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, pmongo.WrapError(r.op("list"), err)
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.toDomain())
	}
	return orders, nil
}

package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	domain "github.com/trendora/api/internal/domain"
	pmongo "github.com/trendora/api/internal/platform/mongodb"
	"github.com/trendora/api/internal/repositories"
)

const (
	productsCollection = "products"
	usersCollection    = "users"
)

// ProductRepository reads catalog products.
type ProductRepository struct {
	collection
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a MongoDB-backed product reader.
func NewProductRepository(provider *pmongo.Provider, timeout time.Duration) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires mongodb provider")
	}
	return &ProductRepository{collection{provider: provider, name: productsCollection, timeout: timeout}}, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	found, err := r.FindByIDs(ctx, []string{productID})
	if err != nil {
		return domain.Product{}, err
	}
	product, ok := found[productID]
	if !ok {
		return domain.Product{}, pmongo.NotFound(r.op("find"), "product %s not found", productID)
	}
	return product, nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var docs []productDocument
	if err := findAll(ctx, r.collection, idsFilter(productIDs), &docs); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		product := doc.toDomain()
		out[product.ID] = product
	}
	return out, nil
}

// UserRepository reads user profiles.
type UserRepository struct {
	collection
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a MongoDB-backed user reader.
func NewUserRepository(provider *pmongo.Provider, timeout time.Duration) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires mongodb provider")
	}
	return &UserRepository{collection{provider: provider, name: usersCollection, timeout: timeout}}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserSummary, error) {
	found, err := r.FindByIDs(ctx, []string{userID})
	if err != nil {
		return domain.UserSummary{}, err
	}
	user, ok := found[userID]
	if !ok {
		return domain.UserSummary{}, pmongo.NotFound(r.op("find"), "user %s not found", userID)
	}
	return user, nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error) {
	out := make(map[string]domain.UserSummary, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var docs []userDocument
	if err := findAll(ctx, r.collection, idsFilter(userIDs), &docs); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		user := doc.toDomain()
		out[user.ID] = user
	}
	return out, nil
}

func findAll(ctx context.Context, c collection, filter bson.M, out any) error {
	ctx, coll, cancel, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return pmongo.WrapError(c.op("find"), err)
	}
	return pmongo.WrapError(c.op("find"), cursor.All(ctx, out))
}

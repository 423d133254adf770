package firestore

import (
	"context"
	"errors"
	"time"

	domain "github.com/trendora/api/internal/domain"
	pfirestore "github.com/trendora/api/internal/platform/firestore"
	"github.com/trendora/api/internal/repositories"
)

const (
	productsCollection = "products"
	usersCollection    = "users"
)

// ProductRepository reads catalog products.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product reader.
func NewProductRepository(provider *pfirestore.Provider, timeout time.Duration) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, pfirestore.WithOperationTimeout[productDocument](timeout)),
	}, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(doc.ID, doc.Data), nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	docs, err := r.base.GetAll(ctx, uniqueIDs(productIDs))
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Product, len(docs))
	for _, doc := range docs {
		out[doc.ID] = decodeProduct(doc.ID, doc.Data)
	}
	return out, nil
}

// UserRepository reads user profiles for ownership enrichment and admin checks.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user reader.
func NewUserRepository(provider *pfirestore.Provider, timeout time.Duration) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base: pfirestore.NewBaseRepository[userDocument](provider, usersCollection, pfirestore.WithOperationTimeout[userDocument](timeout)),
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserSummary, error) {
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.UserSummary{}, err
	}
	return decodeUser(doc.ID, doc.Data), nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, userIDs []string) (map[string]domain.UserSummary, error) {
	docs, err := r.base.GetAll(ctx, uniqueIDs(userIDs))
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.UserSummary, len(docs))
	for _, doc := range docs {
		out[doc.ID] = decodeUser(doc.ID, doc.Data)
	}
	return out, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

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

const cartsCollection = "carts"

// CartRepository stores one cart document per user.
type CartRepository struct {
	collection
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a MongoDB-backed cart repository.
func NewCartRepository(provider *pmongo.Provider, timeout time.Duration) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires mongodb provider")
	}
	return &CartRepository{collection{provider: provider, name: cartsCollection, timeout: timeout}}, nil
}

func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	ctx, coll, cancel, err := r.open(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	defer cancel()
	var doc cartDocument
	if err := coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		return domain.Cart{}, pmongo.WrapError(r.op("get"), err)
	}
	cart := domain.Cart{UserID: doc.UserID, Items: make([]domain.CartItem, 0, len(doc.Items)), UpdatedAt: doc.UpdatedAt.UTC()}
	for _, item := range doc.Items {
		cart.Items = append(cart.Items, domain.CartItem(item))
	}
	return cart, nil
}

func (r *CartRepository) SaveCart(ctx context.Context, cart domain.Cart) error {
	ctx, coll, cancel, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	doc := cartDocument{ID: cart.UserID, UserID: cart.UserID, Items: make([]cartItemDocument, 0, len(cart.Items)), UpdatedAt: cart.UpdatedAt.UTC()}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument(item))
	}
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": cart.UserID}, doc, options.Replace().SetUpsert(true))
	return pmongo.WrapError(r.op("save"), err)
}

// ClearCart empties the user's cart and keeps the document. Clearing an absent cart succeeds.
func (r *CartRepository) ClearCart(ctx context.Context, userID string) error {
	ctx, coll, cancel, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	update := bson.M{"$set": bson.M{"items": bson.A{}, "updatedAt": time.Now().UTC()}}
	_, err = coll.UpdateOne(ctx, bson.M{"_id": userID}, update)
	return pmongo.WrapError(r.op("clear"), err)
}

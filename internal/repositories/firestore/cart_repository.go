package firestore

import (
	"context"
	"errors"
	"time"

	domain "github.com/trendora/api/internal/domain"
	pfirestore "github.com/trendora/api/internal/platform/firestore"
	"github.com/trendora/api/internal/repositories"
)

const cartsCollection = "carts"

// CartRepository stores one cart document per user, keyed by user ID.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider, timeout time.Duration) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, pfirestore.WithOperationTimeout[cartDocument](timeout)),
	}, nil
}

func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCart(doc.ID, doc.Data), nil
}

func (r *CartRepository) SaveCart(ctx context.Context, cart domain.Cart) error {
	return r.base.Set(ctx, cart.UserID, encodeCart(cart))
}

// ClearCart empties the user's cart and keeps the document. Clearing an absent cart leaves an
// empty one behind.
func (r *CartRepository) ClearCart(ctx context.Context, userID string) error {
	return r.base.Set(ctx, userID, encodeCart(domain.Cart{UserID: userID, UpdatedAt: time.Now()}))
}

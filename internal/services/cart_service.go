package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/trendora/api/internal/domain"
	"github.com/trendora/api/internal/platform/textutil"
	"github.com/trendora/api/internal/repositories"
)

const maxCartItemQuantity = 99

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartNotFound indicates the user has no cart, or the cart has no such item.
	ErrCartNotFound = errors.New("cart: not found")
	// ErrCartConflict indicates a concurrent modification aborted the update.
	ErrCartConflict = errors.New("cart: conflict")
	// ErrCartUnavailable indicates the backing store could not serve the request.
	ErrCartUnavailable = errors.New("cart: unavailable")
	// ErrProductNotFound indicates a referenced product does not exist.
	ErrProductNotFound = errors.New("cart: product not found")
)

// CartServiceDeps wires repositories used by the cart service.
type CartServiceDeps struct {
	Carts      repositories.CartRepository
	Products   repositories.ProductRepository
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type cartService struct {
	carts      repositories.CartRepository
	products   repositories.ProductRepository
	unitOfWork repositories.UnitOfWork
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &cartService{
		carts:      deps.Carts,
		products:   deps.Products,
		unitOfWork: unit,
		now:        func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// GetCart returns the user's cart; a missing cart reads as empty.
func (s *cartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CartView{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	return s.view(ctx, cart)
}

// AddItem merges the item on (product, size) or appends it.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	size := textutil.CleanCode(cmd.SelectedSize)
	switch {
	case userID == "":
		return CartView{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	case productID == "":
		return CartView{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	case cmd.Quantity < 1:
		return CartView{}, fmt.Errorf("%w: quantity must be at least 1", ErrCartInvalidInput)
	case cmd.Quantity > maxCartItemQuantity:
		return CartView{}, fmt.Errorf("%w: quantity must not exceed %d", ErrCartInvalidInput, maxCartItemQuantity)
	}

	var saved domain.Cart
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.loadCart(txCtx, userID)
		if err != nil {
			return err
		}
		product, err := s.products.FindByID(txCtx, productID)
		if err != nil {
			return s.translateProductError(err, productID)
		}
		if err := checkSize(product, size); err != nil {
			return err
		}

		idx := slices.IndexFunc(cart.Items, func(item domain.CartItem) bool {
			return item.Matches(productID, size)
		})
		if idx >= 0 {
			quantity := cmd.Quantity
			if !cmd.Absolute {
				quantity += cart.Items[idx].Quantity
			}
			if quantity > maxCartItemQuantity {
				return fmt.Errorf("%w: quantity must not exceed %d", ErrCartInvalidInput, maxCartItemQuantity)
			}
			cart.Items[idx].Quantity = quantity
		} else {
			cart.Items = append(cart.Items, domain.CartItem{
				ProductID:    productID,
				Quantity:     cmd.Quantity,
				SelectedSize: size,
			})
		}

		cart.UpdatedAt = s.now()
		if err := s.carts.SaveCart(txCtx, cart); err != nil {
			return s.translateRepoError(err)
		}
		saved = cart
		return nil
	})
	if err != nil {
		return CartView{}, err
	}

	s.logger(ctx, "cart.item.added", map[string]any{
		"userId":    userID,
		"productId": productID,
		"size":      size,
		"quantity":  cmd.Quantity,
		"absolute":  cmd.Absolute,
	})
	return s.view(ctx, saved)
}

// RemoveItem drops the item keyed by (product, size). Removing an absent item is a no-op.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartView, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	size := textutil.CleanCode(cmd.SelectedSize)
	if userID == "" || productID == "" {
		return CartView{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}

	var saved domain.Cart
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.carts.GetCart(txCtx, userID)
		if err != nil {
			return s.translateRepoError(err)
		}
		before := len(cart.Items)
		cart.Items = slices.DeleteFunc(cart.Items, func(item domain.CartItem) bool {
			return item.Matches(productID, size)
		})
		if len(cart.Items) == before {
			saved = cart
			return nil
		}
		cart.UpdatedAt = s.now()
		if err := s.carts.SaveCart(txCtx, cart); err != nil {
			return s.translateRepoError(err)
		}
		saved = cart
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return s.view(ctx, saved)
}

// ClearCart empties the cart. Clearing an absent cart succeeds.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.carts.ClearCart(ctx, userID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *cartService) loadCart(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err == nil {
		cart.UserID = userID
		return cart, nil
	}
	if isRepoNotFound(err) {
		return domain.Cart{UserID: userID}, nil
	}
	return domain.Cart{}, s.translateRepoError(err)
}

func (s *cartService) view(ctx context.Context, cart domain.Cart) (CartView, error) {
	view := CartView{UserID: cart.UserID, UpdatedAt: cart.UpdatedAt, Lines: make([]CartLine, 0, len(cart.Items))}
	if cart.IsEmpty() {
		return view, nil
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return CartView{}, s.translateRepoError(err)
	}

	for _, item := range cart.Items {
		line := CartLine{Item: item}
		if product, ok := products[item.ProductID]; ok {
			line.Product = &product
			view.Subtotal += product.Price * int64(item.Quantity)
		}
		view.Lines = append(view.Lines, line)
	}
	return view, nil
}

func checkSize(product domain.Product, size string) error {
	if len(product.Sizes) == 0 {
		return nil
	}
	if size == "" {
		return fmt.Errorf("%w: selected size is required for product %s", ErrCartInvalidInput, product.ID)
	}
	for _, candidate := range product.Sizes {
		if strings.EqualFold(strings.TrimSpace(candidate), size) {
			return nil
		}
	}
	return fmt.Errorf("%w: size %q is not offered for product %s", ErrCartInvalidInput, size, product.ID)
}

func (s *cartService) translateProductError(err error, productID string) error {
	if isRepoNotFound(err) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return s.translateRepoError(err)
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCartNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCartConflict, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	domain "github.com/trendora/api/internal/domain"
	"github.com/trendora/api/internal/repositories"
)

type testRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e testRepoError) Error() string       { return e.msg }
func (e testRepoError) IsNotFound() bool    { return e.notFound }
func (e testRepoError) IsConflict() bool    { return e.conflict }
func (e testRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errRepoNotFound    = testRepoError{msg: "not found", notFound: true}
	errRepoConflict    = testRepoError{msg: "conflict", conflict: true}
	errRepoUnavailable = testRepoError{msg: "unavailable", unavailable: true}
)

var _ repositories.RepositoryError = testRepoError{}

type stubOrderRepo struct {
	insertFn     func(context.Context, domain.Order) error
	updateFn     func(context.Context, domain.Order) error
	deleteFn     func(context.Context, string) error
	findFn       func(context.Context, string) (domain.Order, error)
	listByUserFn func(context.Context, string) ([]domain.Order, error)
	listAllFn    func(context.Context) ([]domain.Order, error)
	listSinceFn  func(context.Context, time.Time, []domain.OrderStatus) ([]domain.Order, error)

	inserted []domain.Order
	updated  []domain.Order
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		if err := s.insertFn(ctx, order); err != nil {
			return err
		}
	}
	s.inserted = append(s.inserted, order)
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	if s.updateFn != nil {
		if err := s.updateFn(ctx, order); err != nil {
			return err
		}
	}
	s.updated = append(s.updated, order)
	return nil
}

func (s *stubOrderRepo) Delete(ctx context.Context, orderID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errRepoNotFound
}

func (s *stubOrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if s.listByUserFn != nil {
		return s.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubOrderRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	if s.listAllFn != nil {
		return s.listAllFn(ctx)
	}
	return nil, nil
}

func (s *stubOrderRepo) ListPlacedSince(ctx context.Context, since time.Time, statuses []domain.OrderStatus) ([]domain.Order, error) {
	if s.listSinceFn != nil {
		return s.listSinceFn(ctx, since, statuses)
	}
	return nil, nil
}

// memoryCartRepo keeps carts in a map; the *Fn hooks override individual calls.
type memoryCartRepo struct {
	mu      sync.Mutex
	carts   map[string]domain.Cart
	getFn   func(context.Context, string) (domain.Cart, error)
	saveFn  func(context.Context, domain.Cart) error
	clearFn func(context.Context, string) error
	saves   int
	clears  int
}

func newMemoryCartRepo(carts ...domain.Cart) *memoryCartRepo {
	repo := &memoryCartRepo{carts: map[string]domain.Cart{}}
	for _, cart := range carts {
		repo.carts[cart.UserID] = cart
	}
	return repo
}

func (r *memoryCartRepo) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r.getFn != nil {
		return r.getFn(ctx, userID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, errRepoNotFound
	}
	cart.Items = slices.Clone(cart.Items)
	return cart, nil
}

func (r *memoryCartRepo) SaveCart(ctx context.Context, cart domain.Cart) error {
	if r.saveFn != nil {
		if err := r.saveFn(ctx, cart); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	cart.Items = slices.Clone(cart.Items)
	r.carts[cart.UserID] = cart
	return nil
}

func (r *memoryCartRepo) ClearCart(ctx context.Context, userID string) error {
	if r.clearFn != nil {
		if err := r.clearFn(ctx, userID); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	if cart, ok := r.carts[userID]; ok {
		cart.Items = []domain.CartItem{}
		r.carts[userID] = cart
	}
	return nil
}

type stubProductRepo struct {
	products   map[string]domain.Product
	findManyFn func(context.Context, []string) (map[string]domain.Product, error)
}

func newStubProductRepo(products ...domain.Product) *stubProductRepo {
	repo := &stubProductRepo{products: map[string]domain.Product{}}
	for _, product := range products {
		repo.products[product.ID] = product
	}
	return repo
}

func (s *stubProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, errRepoNotFound
	}
	return product, nil
}

func (s *stubProductRepo) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if s.findManyFn != nil {
		return s.findManyFn(ctx, productIDs)
	}
	out := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if product, ok := s.products[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

type stubUserRepo struct {
	users map[string]domain.UserSummary
	calls [][]string
}

func (s *stubUserRepo) FindByID(_ context.Context, userID string) (domain.UserSummary, error) {
	user, ok := s.users[userID]
	if !ok {
		return domain.UserSummary{}, errRepoNotFound
	}
	return user, nil
}

func (s *stubUserRepo) FindByIDs(_ context.Context, userIDs []string) (map[string]domain.UserSummary, error) {
	s.calls = append(s.calls, slices.Clone(userIDs))
	out := map[string]domain.UserSummary{}
	for _, id := range userIDs {
		if user, ok := s.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

type stubCounterRepo struct {
	nextFn func(context.Context, string, int64) (int64, error)
	calls  int
}

func (s *stubCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.calls++
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return int64(s.calls), nil
}

type recordingUnitOfWork struct {
	calls int
}

func (u *recordingUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	u.calls++
	return fn(ctx)
}

type captureOrderEvents struct {
	events []OrderEvent
	err    error
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.events = append(c.events, event)
	return c.err
}

type captureMetrics struct {
	placed  []int
	changes [][3]string
	served  []bool
}

func (m *captureMetrics) OrderPlaced(_ context.Context, items int) {
	m.placed = append(m.placed, items)
}

func (m *captureMetrics) StatusChanged(_ context.Context, from, to, actor string) {
	m.changes = append(m.changes, [3]string{from, to, actor})
}

func (m *captureMetrics) StatsServed(_ context.Context, _ time.Duration, cached bool) {
	m.served = append(m.served, cached)
}

type captureLogger struct {
	mu     sync.Mutex
	events []string
}

func (l *captureLogger) log(_ context.Context, event string, _ map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *captureLogger) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(l.events, event)
}

var errBoom = errors.New("boom")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/trendora/api/internal/platform/auth"
	"github.com/trendora/api/internal/services"
)

var errNotImplemented = errors.New("not implemented")

type stubCartService struct {
	getFn    func(context.Context, string) (services.CartView, error)
	addFn    func(context.Context, services.AddCartItemCommand) (services.CartView, error)
	removeFn func(context.Context, services.RemoveCartItemCommand) (services.CartView, error)
	clearFn  func(context.Context, string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.CartView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return services.CartView{}, errNotImplemented
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.CartView, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return services.CartView{}, errNotImplemented
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (services.CartView, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return services.CartView{}, errNotImplemented
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, userID)
	}
	return errNotImplemented
}

type stubOrderService struct {
	createFn   func(context.Context, services.CreateOrderCommand) (services.Order, error)
	listMineFn func(context.Context, string) ([]services.Order, error)
	listAllFn  func(context.Context) ([]services.OrderWithOwner, error)
	getFn      func(context.Context, string, string) (services.Order, error)
	cancelFn   func(context.Context, services.CancelOrderCommand) (services.Order, error)
	updateFn   func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error)
	deleteFn   func(context.Context, services.DeleteOrderCommand) (string, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) ListMyOrders(ctx context.Context, userID string) ([]services.Order, error) {
	if s.listMineFn != nil {
		return s.listMineFn(ctx, userID)
	}
	return nil, errNotImplemented
}

func (s *stubOrderService) ListAllOrders(ctx context.Context) ([]services.OrderWithOwner, error) {
	if s.listAllFn != nil {
		return s.listAllFn(ctx)
	}
	return nil, errNotImplemented
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID, requesterID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID, requesterID)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, cmd services.DeleteOrderCommand) (string, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, cmd)
	}
	return "", errNotImplemented
}

func (s *stubOrderService) MarkOrderPaid(context.Context, services.MarkOrderPaidCommand) (services.Order, error) {
	return services.Order{}, errNotImplemented
}

type stubStatsService struct {
	stats services.OrderStats
	err   error
}

func (s *stubStatsService) GetOrderStats(context.Context) (services.OrderStats, error) {
	return s.stats, s.err
}

type stubPaymentService struct {
	verifyFn  func(context.Context, services.RazorpayVerificationCommand) (services.Order, error)
	webhookFn func(context.Context, []byte, string) (services.StripeWebhookResult, error)
}

func (s *stubPaymentService) VerifyRazorpayPayment(ctx context.Context, cmd services.RazorpayVerificationCommand) (services.Order, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubPaymentService) HandleStripeWebhook(ctx context.Context, payload []byte, sig string) (services.StripeWebhookResult, error) {
	if s.webhookFn != nil {
		return s.webhookFn(ctx, payload, sig)
	}
	return services.StripeWebhookResult{}, errNotImplemented
}

type stubHealthService struct {
	report services.ReadinessReport
	err    error
}

func (s *stubHealthService) Readiness(context.Context) (services.ReadinessReport, error) {
	return s.report, s.err
}

// withIdentity stands in for the auth middleware.
func withIdentity(uid string, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := &auth.Identity{UID: uid, Roles: roles}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

func newTestRouter(uid string, opts ...Option) chi.Router {
	if uid != "" {
		opts = append([]Option{WithMiddlewares(withIdentity(uid))}, opts...)
	}
	return NewRouter(opts...)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return body
}

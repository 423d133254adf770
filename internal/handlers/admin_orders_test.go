package handlers

import (
	"context"
	"net/http"
	"testing"

	domain "github.com/trendora/api/internal/domain"
	"github.com/trendora/api/internal/services"
)

func adminRouter(orders services.OrderService, stats services.OrderStatsService) http.Handler {
	return newTestRouter("admin_1", WithAdminRoutes(NewAdminOrderHandlers(nil, orders, stats).Routes))
}

func TestAdminOrderHandlersListOrdersIncludesOwner(t *testing.T) {
	svc := &stubOrderService{listAllFn: func(context.Context) ([]services.OrderWithOwner, error) {
		return []services.OrderWithOwner{{
			Order: sampleOrder("ord_1", "user_1", services.OrderStatus("Pending")),
			Owner: services.UserSummary{ID: "user_1", DisplayName: "Asha", Email: "asha@example.com"},
		}}, nil
	}}

	rr := doRequest(t, adminRouter(svc, nil), http.MethodGet, "/api/v1/admin/orders", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	items := decodeResponse(t, rr)["items"].([]any)
	owner := items[0].(map[string]any)["owner"].(map[string]any)
	if owner["display_name"] != "Asha" || owner["email"] != "asha@example.com" {
		t.Fatalf("unexpected owner %v", owner)
	}
}

func TestAdminOrderHandlersStats(t *testing.T) {
	stats := &stubStatsService{stats: services.OrderStats{
		DailySeries: []domain.DailySales{{Date: "2025-06-09", TotalSales: 3000, TotalOrders: 1}},
		Summary:     domain.SalesSummary{TotalRevenue: 3000, TotalOrders: 1},
		CategoryBreakdown: []domain.CategorySales{
			{Category: "Apparel", TotalRevenue: 3000, TotalItemsSold: 2},
		},
	}}
	orders := &stubOrderService{getFn: func(context.Context, string, string) (services.Order, error) {
		t.Fatalf("stats route resolved as an order id")
		return services.Order{}, nil
	}}

	rr := doRequest(t, adminRouter(orders, stats), http.MethodGet, "/api/v1/admin/orders/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeResponse(t, rr)
	summary := body["summary"].(map[string]any)
	if summary["total_revenue"] != float64(3000) || summary["total_orders"] != float64(1) {
		t.Fatalf("unexpected summary %v", summary)
	}
	series := body["daily_series"].([]any)
	if len(series) != 1 || series[0].(map[string]any)["date"] != "2025-06-09" {
		t.Fatalf("unexpected series %v", series)
	}
	categories := body["category_breakdown"].([]any)
	if categories[0].(map[string]any)["total_items_sold"] != float64(2) {
		t.Fatalf("unexpected categories %v", categories)
	}
	if len(body) != 3 {
		t.Fatalf("expected only series, summary and breakdown, got %v", body)
	}
}

func TestAdminOrderHandlersStatsUnavailable(t *testing.T) {
	stats := &stubStatsService{err: services.ErrOrderUnavailable}

	rr := doRequest(t, adminRouter(&stubOrderService{}, stats), http.MethodGet, "/api/v1/admin/orders/stats", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersUpdateStatus(t *testing.T) {
	var captured services.UpdateOrderStatusCommand
	svc := &stubOrderService{updateFn: func(_ context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
		captured = cmd
		if cmd.Status == "Returned" {
			return services.Order{}, services.ErrOrderInvalidInput
		}
		return sampleOrder(cmd.OrderID, "user_1", cmd.Status), nil
	}}
	router := adminRouter(svc, nil)

	rr := doRequest(t, router, http.MethodPut, "/api/v1/admin/orders/ord_1/status", `{"status":"Shipped"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := services.UpdateOrderStatusCommand{OrderID: "ord_1", Status: "Shipped", ActorID: "admin_1"}
	if captured != want {
		t.Fatalf("got %+v want %+v", captured, want)
	}
	if body := decodeResponse(t, rr); body["status"] != "Shipped" {
		t.Fatalf("unexpected status %v", body["status"])
	}

	rr = doRequest(t, router, http.MethodPut, "/api/v1/admin/orders/ord_1/status", `{"status":"Returned"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersDeleteOrder(t *testing.T) {
	var captured services.DeleteOrderCommand
	svc := &stubOrderService{deleteFn: func(_ context.Context, cmd services.DeleteOrderCommand) (string, error) {
		captured = cmd
		if cmd.OrderID == "ord_gone" {
			return "", services.ErrOrderNotFound
		}
		return "Order removed", nil
	}}
	router := adminRouter(svc, nil)

	rr := doRequest(t, router, http.MethodDelete, "/api/v1/admin/orders/ord_1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if captured.OrderID != "ord_1" || captured.ActorID != "admin_1" {
		t.Fatalf("unexpected command %+v", captured)
	}
	if body := decodeResponse(t, rr); body["message"] != "Order removed" {
		t.Fatalf("unexpected message %v", body["message"])
	}

	rr = doRequest(t, router, http.MethodDelete, "/api/v1/admin/orders/ord_gone", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

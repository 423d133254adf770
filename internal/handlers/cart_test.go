package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/trendora/api/internal/services"
)

func cartRouter(uid string, svc services.CartService) http.Handler {
	return newTestRouter(uid, WithCartRoutes(NewCartHandlers(nil, svc).Routes))
}

func TestCartHandlersGetCart(t *testing.T) {
	svc := &stubCartService{getFn: func(_ context.Context, userID string) (services.CartView, error) {
		return services.CartView{
			UserID: userID,
			Lines: []services.CartLine{
				{Item: services.CartItem{ProductID: "prod_tee", Quantity: 2, SelectedSize: "M"}, Product: &services.Product{ID: "prod_tee", Name: "Linen Tee", Price: 1500}},
				{Item: services.CartItem{ProductID: "prod_gone", Quantity: 1}},
			},
			Subtotal:  3000,
			UpdatedAt: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		}, nil
	}}

	rr := doRequest(t, cartRouter("user_1", svc), http.MethodGet, "/api/v1/cart", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeResponse(t, rr)
	if body["user_id"] != "user_1" || body["subtotal"] != float64(3000) {
		t.Fatalf("unexpected body %v", body)
	}
	items := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0].(map[string]any)
	if first["selected_size"] != "M" || first["product"].(map[string]any)["name"] != "Linen Tee" {
		t.Fatalf("unexpected first item %v", first)
	}
	if second := items[1].(map[string]any); second["product"] != nil {
		t.Fatalf("expected null product for removed catalog entry, got %v", second["product"])
	}
}

func TestCartHandlersRequireIdentity(t *testing.T) {
	rr := doRequest(t, cartRouter("", &stubCartService{}), http.MethodGet, "/api/v1/cart", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	var captured services.AddCartItemCommand
	svc := &stubCartService{addFn: func(_ context.Context, cmd services.AddCartItemCommand) (services.CartView, error) {
		captured = cmd
		return services.CartView{UserID: cmd.UserID}, nil
	}}

	rr := doRequest(t, cartRouter("user_1", svc), http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"prod_tee","quantity":3,"selected_size":"L","absolute":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := services.AddCartItemCommand{UserID: "user_1", ProductID: "prod_tee", Quantity: 3, SelectedSize: "L", Absolute: true}
	if captured != want {
		t.Fatalf("got %+v want %+v", captured, want)
	}
}

func TestCartHandlersAddItemErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{"invalid json", nil, `{`, http.StatusBadRequest},
		{"validation", services.ErrCartInvalidInput, `{"product_id":"p","quantity":0}`, http.StatusBadRequest},
		{"unknown product", services.ErrProductNotFound, `{"product_id":"p","quantity":1}`, http.StatusNotFound},
		{"store down", services.ErrCartUnavailable, `{"product_id":"p","quantity":1}`, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCartService{addFn: func(context.Context, services.AddCartItemCommand) (services.CartView, error) {
				return services.CartView{}, tc.err
			}}
			rr := doRequest(t, cartRouter("user_1", svc), http.MethodPost, "/api/v1/cart/items", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestCartHandlersRemoveItem(t *testing.T) {
	var captured services.RemoveCartItemCommand
	svc := &stubCartService{removeFn: func(_ context.Context, cmd services.RemoveCartItemCommand) (services.CartView, error) {
		captured = cmd
		return services.CartView{UserID: cmd.UserID}, nil
	}}
	router := cartRouter("user_1", svc)

	rr := doRequest(t, router, http.MethodDelete, "/api/v1/cart/items", `{"product_id":"prod_tee","selected_size":"M"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ProductID != "prod_tee" || captured.SelectedSize != "M" {
		t.Fatalf("unexpected command from body %+v", captured)
	}

	rr = doRequest(t, router, http.MethodDelete, "/api/v1/cart/items?product_id=prod_mug", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if captured.ProductID != "prod_mug" || captured.SelectedSize != "" {
		t.Fatalf("unexpected command from query %+v", captured)
	}

	svc.removeFn = func(context.Context, services.RemoveCartItemCommand) (services.CartView, error) {
		return services.CartView{}, fmt.Errorf("%w: user_1", services.ErrCartNotFound)
	}
	rr = doRequest(t, router, http.MethodDelete, "/api/v1/cart/items?product_id=prod_mug", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	cleared := ""
	svc := &stubCartService{clearFn: func(_ context.Context, userID string) error {
		cleared = userID
		return nil
	}}

	rr := doRequest(t, cartRouter("user_1", svc), http.MethodDelete, "/api/v1/cart", "")
	if rr.Code != http.StatusOK || cleared != "user_1" {
		t.Fatalf("expected cart cleared, got %d %q", rr.Code, cleared)
	}
	if body := decodeResponse(t, rr); body["message"] != "Cart cleared" {
		t.Fatalf("unexpected body %v", body)
	}
}

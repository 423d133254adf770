package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRouterNotFoundReturnsJSONEnvelope(t *testing.T) {
	router := NewRouter()

	rr := doRequest(t, router, http.MethodGet, "/api/v1/unknown", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	body := decodeResponse(t, rr)
	if body["error"] != errorNotFoundCode {
		t.Fatalf("expected route_not_found, got %v", body["error"])
	}
	if body["request_id"] == nil {
		t.Fatalf("expected request id in envelope")
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	router := NewRouter(WithCartRoutes(func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}))

	rr := doRequest(t, router, http.MethodPatch, "/api/v1/cart", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if body := decodeResponse(t, rr); body["error"] != "method_not_allowed" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestRouterMountsGroups(t *testing.T) {
	hit := map[string]bool{}
	mark := func(name string) RouteRegistrar {
		return func(r chi.Router) {
			r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
				hit[name] = true
				w.WriteHeader(http.StatusNoContent)
			})
		}
	}
	router := NewRouter(
		WithCartRoutes(mark("cart")),
		WithOrderRoutes(mark("orders")),
		WithAdminRoutes(mark("admin")),
		WithPaymentRoutes(mark("payments")),
		WithWebhookRoutes(mark("webhooks")),
	)

	for _, group := range []string{"cart", "orders", "admin", "payments", "webhooks"} {
		rr := doRequest(t, router, http.MethodGet, "/api/v1/"+group+"/ping", "")
		if rr.Code != http.StatusNoContent || !hit[group] {
			t.Fatalf("group %s not mounted (status %d)", group, rr.Code)
		}
	}
}

func TestRouterHealthz(t *testing.T) {
	rr := doRequest(t, NewRouter(), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := decodeResponse(t, rr); body["status"] != "ok" {
		t.Fatalf("expected ok, got %v", body["status"])
	}
}

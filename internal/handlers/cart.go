package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/trendora/api/internal/platform/auth"
	"github.com/trendora/api/internal/services"
)

type addCartItemRequest struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	SelectedSize string `json:"selected_size"`
	Absolute     bool   `json:"absolute"`
}

type removeCartItemRequest struct {
	ProductID    string `json:"product_id"`
	SelectedSize string `json:"selected_size"`
}

// CartHandlers exposes the authenticated user's cart.
type CartHandlers struct {
	authn *auth.Authenticator
	cart  services.CartService
}

func NewCartHandlers(authn *auth.Authenticator, cart services.CartService) *CartHandlers {
	return &CartHandlers{authn: authn, cart: cart}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Delete("/items", h.removeItem)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		writeServiceUnavailable(ctx, w, "cart")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	view, err := h.cart.GetCart(ctx, userID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(view))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		writeServiceUnavailable(ctx, w, "cart")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := h.cart.AddItem(ctx, services.AddCartItemCommand{
		UserID:       userID,
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		SelectedSize: req.SelectedSize,
		Absolute:     req.Absolute,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(view))
}

// removeItem accepts the item key either as a JSON body or as query parameters.
func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		writeServiceUnavailable(ctx, w, "cart")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	req := removeCartItemRequest{
		ProductID:    strings.TrimSpace(r.URL.Query().Get("product_id")),
		SelectedSize: r.URL.Query().Get("selected_size"),
	}
	if req.ProductID == "" && r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	view, err := h.cart.RemoveItem(ctx, services.RemoveCartItemCommand{
		UserID:       userID,
		ProductID:    req.ProductID,
		SelectedSize: req.SelectedSize,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(view))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.cart == nil {
		writeServiceUnavailable(ctx, w, "cart")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.cart.ClearCart(ctx, userID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/trendora/api/internal/platform/auth"
	"github.com/trendora/api/internal/platform/httpx"
	"github.com/trendora/api/internal/services"
)

type createOrderRequest struct {
	ShippingAddress shippingAddressPayload `json:"shipping_address"`
}

// OrderHandlers exposes order endpoints for the authenticated customer.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
}

// OrderHandlerOption customises OrderHandlers.
type OrderHandlerOption func(*OrderHandlers)

// WithOrderIdempotency guards order creation with the given middleware.
func WithOrderIdempotency(mw func(http.Handler) http.Handler) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{authn: authn, orders: orders}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	create := http.Handler(http.HandlerFunc(h.createOrder))
	if h.idempotency != nil {
		create = h.idempotency(create)
	}
	r.Method(http.MethodPost, "/", create)
	r.Get("/mine", h.listMyOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress.toDomain(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListMyOrders(ctx, userID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	response := orderListResponse{Items: make([]orderPayload, 0, len(orders))}
	for _, order := range orders {
		response.Items = append(response.Items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, response)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}
	order, err := h.orders.GetOrder(ctx, orderID, userID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}
	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{OrderID: orderID, RequesterID: userID})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

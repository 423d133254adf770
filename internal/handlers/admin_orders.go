package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/trendora/api/internal/platform/auth"
	"github.com/trendora/api/internal/platform/httpx"
	"github.com/trendora/api/internal/services"
)

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

// AdminOrderHandlers exposes order management and the sales dashboard to administrators.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	stats  services.OrderStatsService
}

func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, stats services.OrderStatsService) *AdminOrderHandlers {
	return &AdminOrderHandlers{authn: authn, orders: orders, stats: stats}
}

// Routes registers the /admin endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleAdmin))
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/stats", h.orderStats)
	r.Put("/orders/{orderID}/status", h.updateStatus)
	r.Delete("/orders/{orderID}", h.deleteOrder)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	orders, err := h.orders.ListAllOrders(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	response := orderListResponse{Items: make([]orderPayload, 0, len(orders))}
	for _, order := range orders {
		response.Items = append(response.Items, buildOrderWithOwnerPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, response)
}

func (h *AdminOrderHandlers) orderStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stats == nil {
		writeServiceUnavailable(ctx, w, "stats")
		return
	}
	stats, err := h.stats.GetOrderStats(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderStatsPayload(stats))
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	actorID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}
	var req updateOrderStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.orders.UpdateOrderStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: orderID,
		Status:  services.OrderStatus(req.Status),
		ActorID: actorID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeServiceUnavailable(ctx, w, "order")
		return
	}
	actorID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	message, err := h.orders.DeleteOrder(ctx, services.DeleteOrderCommand{OrderID: orderID, ActorID: actorID})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": message})
}

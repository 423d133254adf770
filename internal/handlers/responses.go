package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/trendora/api/internal/platform/auth"
	"github.com/trendora/api/internal/platform/httpx"
	"github.com/trendora/api/internal/services"
)

const maxRequestBodySize = 16 * 1024

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// requireUserID returns the authenticated uid, writing a 401 when absent.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return strings.TrimSpace(identity.UID), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, maxRequestBodySize, dst); err != nil {
		status := http.StatusBadRequest
		code := "invalid_request"
		if errors.Is(err, httpx.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
			code = "payload_too_large"
		}
		httpx.WriteError(r.Context(), w, httpx.NewError(code, err.Error(), status))
		return false
	}
	return true
}

func writeServiceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_service_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "no items in cart", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentInvalidSignature):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "invalid signature", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderUnauthorized):
		httpx.WriteError(ctx, w, httpx.NewError("not_authorized", "not authorized to modify this order", http.StatusUnauthorized))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict), errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "resource was modified concurrently, retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderDataIntegrity):
		httpx.WriteError(ctx, w, httpx.NewError("data_integrity", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderUnavailable), errors.Is(err, services.ErrCartUnavailable),
		errors.Is(err, services.ErrPaymentProviderDisabled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process request", http.StatusInternalServerError))
	}
}

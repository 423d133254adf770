package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trendora/api/internal/platform/auth"
	"github.com/trendora/api/internal/platform/httpx"
	"github.com/trendora/api/internal/services"
)

const (
	maxWebhookBodySize    = 64 * 1024
	stripeSignatureHeader = "Stripe-Signature"
)

type razorpayVerifyRequest struct {
	RazorpayOrderID   string                 `json:"razorpay_order_id"`
	RazorpayPaymentID string                 `json:"razorpay_payment_id"`
	RazorpaySignature string                 `json:"razorpay_signature"`
	ShippingAddress   shippingAddressPayload `json:"shipping_address"`
}

// PaymentHandlers exposes checkout verification for the authenticated customer.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	payments services.PaymentService
}

func NewPaymentHandlers(authn *auth.Authenticator, payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{authn: authn, payments: payments}
}

// Routes registers the /payments endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/razorpay/verify", h.verifyRazorpay)
}

func (h *PaymentHandlers) verifyRazorpay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeServiceUnavailable(ctx, w, "payment")
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req razorpayVerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.payments.VerifyRazorpayPayment(ctx, services.RazorpayVerificationCommand{
		UserID:            userID,
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		Signature:         req.RazorpaySignature,
		ShippingAddress:   req.ShippingAddress.toDomain(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Payment verified and order saved",
		"order":   buildOrderPayload(order),
	})
}

// WebhookHandlers receives provider callbacks authenticated by signature rather than bearer token.
type WebhookHandlers struct {
	payments services.PaymentService
}

func NewWebhookHandlers(payments services.PaymentService) *WebhookHandlers {
	return &WebhookHandlers{payments: payments}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripe)
}

func (h *WebhookHandlers) stripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeServiceUnavailable(ctx, w, "payment")
		return
	}
	body, err := httpx.ReadBody(r, maxWebhookBodySize)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, httpx.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read webhook payload", status))
		return
	}
	result, err := h.payments.HandleStripeWebhook(ctx, body, r.Header.Get(stripeSignatureHeader))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"received": true,
		"event_id": result.EventID,
		"handled":  result.Handled,
	})
}

package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/trendora/api/internal/services"
)

func TestPaymentHandlersVerifyRazorpay(t *testing.T) {
	var captured services.RazorpayVerificationCommand
	svc := &stubPaymentService{verifyFn: func(_ context.Context, cmd services.RazorpayVerificationCommand) (services.Order, error) {
		captured = cmd
		order := sampleOrder("ord_1", cmd.UserID, services.OrderStatus("Pending"))
		order.Payment = &services.OrderPayment{Provider: "razorpay", Reference: cmd.RazorpayPaymentID, Status: "paid"}
		return order, nil
	}}
	router := newTestRouter("user_1", WithPaymentRoutes(NewPaymentHandlers(nil, svc).Routes))

	body := `{"razorpay_order_id":"order_rzp","razorpay_payment_id":"pay_rzp","razorpay_signature":"abc",` +
		`"shipping_address":{"address":"12 MG Road","city":"Pune","postal_code":"411001","country":"IN"}}`
	rr := doRequest(t, router, http.MethodPost, "/api/v1/payments/razorpay/verify", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user_1" || captured.RazorpayOrderID != "order_rzp" || captured.Signature != "abc" {
		t.Fatalf("unexpected command %+v", captured)
	}
	resp := decodeResponse(t, rr)
	if resp["success"] != true || resp["message"] != "Payment verified and order saved" {
		t.Fatalf("unexpected response %v", resp)
	}
	payment := resp["order"].(map[string]any)["payment"].(map[string]any)
	if payment["reference"] != "pay_rzp" || payment["status"] != "paid" {
		t.Fatalf("unexpected payment %v", payment)
	}
}

func TestPaymentHandlersVerifyRazorpayInvalidSignature(t *testing.T) {
	svc := &stubPaymentService{verifyFn: func(context.Context, services.RazorpayVerificationCommand) (services.Order, error) {
		return services.Order{}, services.ErrPaymentInvalidSignature
	}}
	router := newTestRouter("user_1", WithPaymentRoutes(NewPaymentHandlers(nil, svc).Routes))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/payments/razorpay/verify", `{"razorpay_order_id":"o"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if body := decodeResponse(t, rr); body["error"] != "invalid_signature" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestPaymentHandlersProviderDisabled(t *testing.T) {
	svc := &stubPaymentService{verifyFn: func(context.Context, services.RazorpayVerificationCommand) (services.Order, error) {
		return services.Order{}, services.ErrPaymentProviderDisabled
	}}
	router := newTestRouter("user_1", WithPaymentRoutes(NewPaymentHandlers(nil, svc).Routes))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/payments/razorpay/verify", `{"razorpay_order_id":"o"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestWebhookHandlersStripePassesRawPayload(t *testing.T) {
	const payload = `{"id":"evt_1","type":"payment_intent.succeeded"}`
	var (
		gotPayload string
		gotSig     string
	)
	svc := &stubPaymentService{webhookFn: func(_ context.Context, body []byte, sig string) (services.StripeWebhookResult, error) {
		gotPayload = string(body)
		gotSig = sig
		return services.StripeWebhookResult{EventID: "evt_1", Handled: true}, nil
	}}
	// No identity: webhooks authenticate by signature.
	router := newTestRouter("", WithWebhookRoutes(NewWebhookHandlers(svc).Routes))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/webhooks/stripe", payload, "Stripe-Signature", "t=1,v1=deadbeef")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotPayload != payload || gotSig != "t=1,v1=deadbeef" {
		t.Fatalf("unexpected payload %q sig %q", gotPayload, gotSig)
	}
	resp := decodeResponse(t, rr)
	if resp["received"] != true || resp["event_id"] != "evt_1" || resp["handled"] != true {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestWebhookHandlersStripeErrors(t *testing.T) {
	svc := &stubPaymentService{webhookFn: func(context.Context, []byte, string) (services.StripeWebhookResult, error) {
		return services.StripeWebhookResult{}, services.ErrPaymentInvalidSignature
	}}
	router := newTestRouter("", WithWebhookRoutes(NewWebhookHandlers(svc).Routes))

	rr := doRequest(t, router, http.MethodPost, "/api/v1/webhooks/stripe", `{}`, "Stripe-Signature", "bad")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	large := `{"pad":"` + strings.Repeat("x", maxWebhookBodySize) + `"}`
	rr = doRequest(t, router, http.MethodPost, "/api/v1/webhooks/stripe", large)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/trendora/api/internal/domain"
	"github.com/trendora/api/internal/payments"
)

var (
	// ErrPaymentInvalidSignature indicates a provider callback failed signature verification.
	ErrPaymentInvalidSignature = errors.New("payment: invalid signature")
	// ErrPaymentProviderDisabled indicates the provider has no credentials configured.
	ErrPaymentProviderDisabled = errors.New("payment: provider not configured")
)

// RazorpaySignatureVerifier checks Razorpay checkout signatures.
type RazorpaySignatureVerifier interface {
	Verify(orderID, paymentID, signature string) error
}

// StripeEventParser authenticates and decodes Stripe webhook deliveries.
type StripeEventParser interface {
	Parse(payload []byte, signatureHeader string) (payments.StripeEvent, error)
}

// PaymentServiceDeps wires the payment service.
type PaymentServiceDeps struct {
	Orders   OrderService
	Razorpay RazorpaySignatureVerifier
	Stripe   StripeEventParser
	Clock    func() time.Time
	Logger   func(context.Context, string, map[string]any)
}

type paymentService struct {
	orders   OrderService
	razorpay RazorpaySignatureVerifier
	stripe   StripeEventParser
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewPaymentService constructs a PaymentService. Either verifier may be nil, in which case the
// corresponding operation reports ErrPaymentProviderDisabled.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order service is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &paymentService{
		orders:   deps.Orders,
		razorpay: deps.Razorpay,
		stripe:   deps.Stripe,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// VerifyRazorpayPayment checks the checkout signature and places the order from the user's cart
// with the payment recorded as paid.
func (s *paymentService) VerifyRazorpayPayment(ctx context.Context, cmd RazorpayVerificationCommand) (Order, error) {
	if s.razorpay == nil {
		return Order{}, fmt.Errorf("%w: razorpay", ErrPaymentProviderDisabled)
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	orderRef := strings.TrimSpace(cmd.RazorpayOrderID)
	paymentRef := strings.TrimSpace(cmd.RazorpayPaymentID)

	if err := s.razorpay.Verify(orderRef, paymentRef, cmd.Signature); err != nil {
		s.logger(ctx, "payment.razorpay.verify.failed", map[string]any{
			"userId":          userID,
			"razorpayOrderId": orderRef,
			"error":           err.Error(),
		})
		return Order{}, fmt.Errorf("%w: %v", ErrPaymentInvalidSignature, err)
	}

	paidAt := s.now()
	order, err := s.orders.CreateOrder(ctx, CreateOrderCommand{
		UserID:          userID,
		ShippingAddress: cmd.ShippingAddress,
		Payment: &OrderPayment{
			Provider:   payments.ProviderRazorpay,
			Reference:  paymentRef,
			ExternalID: orderRef,
			Status:     domain.PaymentStatusPaid,
			PaidAt:     &paidAt,
		},
	})
	if err != nil {
		return Order{}, err
	}
	s.logger(ctx, "payment.razorpay.verified", map[string]any{
		"userId":            userID,
		"orderId":           order.ID,
		"razorpayPaymentId": paymentRef,
	})
	return order, nil
}

// HandleStripeWebhook applies payment_intent.succeeded events to the order named in the intent
// metadata. Other event types are acknowledged without side effects.
func (s *paymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signatureHeader string) (StripeWebhookResult, error) {
	if s.stripe == nil {
		return StripeWebhookResult{}, fmt.Errorf("%w: stripe", ErrPaymentProviderDisabled)
	}
	event, err := s.stripe.Parse(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return StripeWebhookResult{}, fmt.Errorf("%w: %v", ErrPaymentInvalidSignature, err)
		}
		return StripeWebhookResult{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	result := StripeWebhookResult{EventID: event.ID, EventType: event.Type, OrderID: event.OrderID}
	if !event.PaymentSucceeded() {
		return result, nil
	}
	if event.OrderID == "" {
		s.logger(ctx, "payment.stripe.metadata.missing", map[string]any{
			"eventId":         event.ID,
			"paymentIntentId": event.PaymentIntentID,
		})
		return result, nil
	}

	_, err = s.orders.MarkOrderPaid(ctx, MarkOrderPaidCommand{
		OrderID:    event.OrderID,
		Provider:   payments.ProviderStripe,
		Reference:  event.PaymentIntentID,
		ExternalID: event.ID,
	})
	switch {
	case errors.Is(err, ErrOrderNotFound):
		// Acknowledged so Stripe stops redelivering an event for an order that no longer exists.
		s.logger(ctx, "payment.stripe.order.missing", map[string]any{
			"eventId": event.ID,
			"orderId": event.OrderID,
		})
		return result, nil
	case err != nil:
		return StripeWebhookResult{}, err
	}

	result.Handled = true
	s.logger(ctx, "payment.stripe.recorded", map[string]any{
		"eventId":         event.ID,
		"orderId":         event.OrderID,
		"paymentIntentId": event.PaymentIntentID,
	})
	return result, nil
}

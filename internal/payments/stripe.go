package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeOrderMetadataKey is the PaymentIntent metadata key carrying our order id.
const StripeOrderMetadataKey = "order_id"

// StripeEvent is the subset of a verified Stripe event the order flow consumes.
type StripeEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	OrderID         string
	AmountReceived  int64
}

// PaymentSucceeded reports whether the event settles a payment intent.
func (e StripeEvent) PaymentSucceeded() bool {
	return e.Type == string(stripe.EventTypePaymentIntentSucceeded)
}

// StripeWebhookVerifier authenticates webhook deliveries with the endpoint signing secret.
type StripeWebhookVerifier struct {
	secret string
}

func NewStripeWebhookVerifier(signingSecret string) (*StripeWebhookVerifier, error) {
	signingSecret = strings.TrimSpace(signingSecret)
	if signingSecret == "" {
		return nil, errors.New("payments: stripe webhook secret is required")
	}
	return &StripeWebhookVerifier{secret: signingSecret}, nil
}

// Parse verifies the Stripe-Signature header and decodes the event. Signature, timestamp
// tolerance and malformed payload failures all wrap ErrInvalidSignature.
func (v *StripeWebhookVerifier) Parse(payload []byte, signatureHeader string) (StripeEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return StripeEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := StripeEvent{ID: event.ID, Type: string(event.Type)}
	if strings.HasPrefix(out.Type, "payment_intent.") && event.Data != nil {
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return StripeEvent{}, fmt.Errorf("payments: decode payment intent: %w", err)
		}
		out.PaymentIntentID = intent.ID
		out.OrderID = strings.TrimSpace(intent.Metadata[StripeOrderMetadataKey])
		out.AmountReceived = intent.AmountReceived
	}
	return out, nil
}

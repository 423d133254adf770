package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRazorpayVerifier(t *testing.T) {
	verifier, err := NewRazorpayVerifier("rzp_secret")
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("rzp_secret"))
	mac.Write([]byte("order_9A33XWu170gUtm|pay_29QQoUBi66xm2f"))
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.NoError(t, verifier.Verify("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", valid))
	assert.Equal(t, valid, verifier.Sign("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f"))

	assert.ErrorIs(t, verifier.Verify("order_9A33XWu170gUtm", "pay_other", valid), ErrInvalidSignature)
	assert.ErrorIs(t, verifier.Verify("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", "not-hex"), ErrInvalidSignature)
	assert.ErrorIs(t, verifier.Verify("", "pay_29QQoUBi66xm2f", valid), ErrInvalidSignature)
	assert.ErrorIs(t, verifier.Verify("order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", valid[:10]), ErrInvalidSignature)
}

func TestNewRazorpayVerifierRequiresSecret(t *testing.T) {
	_, err := NewRazorpayVerifier("  ")
	assert.Error(t, err)
}

func signedStripePayload(t *testing.T, secret, payload string) (string, []byte) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header, signed.Payload
}

func TestStripeWebhookVerifierParsesPaymentIntent(t *testing.T) {
	verifier, err := NewStripeWebhookVerifier("whsec_test")
	require.NoError(t, err)

	body := fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2020-08-27",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "object": "payment_intent", "amount_received": 2599, "metadata": {"%s": "ord_01"}}}
	}`, StripeOrderMetadataKey)
	header, payload := signedStripePayload(t, "whsec_test", body)

	event, err := verifier.Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.True(t, event.PaymentSucceeded())
	assert.Equal(t, "pi_1", event.PaymentIntentID)
	assert.Equal(t, "ord_01", event.OrderID)
	assert.Equal(t, int64(2599), event.AmountReceived)
}

func TestStripeWebhookVerifierRejectsBadSignature(t *testing.T) {
	verifier, err := NewStripeWebhookVerifier("whsec_test")
	require.NoError(t, err)

	header, payload := signedStripePayload(t, "whsec_other", `{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{}}}`)
	_, err = verifier.Parse(payload, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = verifier.Parse(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripeWebhookVerifierPassesThroughOtherEvents(t *testing.T) {
	verifier, err := NewStripeWebhookVerifier("whsec_test")
	require.NoError(t, err)

	header, payload := signedStripePayload(t, "whsec_test", `{"id":"evt_3","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	event, err := verifier.Parse(payload, header)
	require.NoError(t, err)
	assert.False(t, event.PaymentSucceeded())
	assert.Empty(t, event.OrderID)
}

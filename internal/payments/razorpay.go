package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ProviderRazorpay and ProviderStripe name the payment providers recorded on orders.
const (
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"
)

// ErrInvalidSignature is returned when a provider signature does not match the payload.
var ErrInvalidSignature = errors.New("payments: invalid signature")

// RazorpayVerifier checks checkout signatures issued by Razorpay.
type RazorpayVerifier struct {
	secret []byte
}

// NewRazorpayVerifier builds a verifier for the account's key secret.
func NewRazorpayVerifier(keySecret string) (*RazorpayVerifier, error) {
	keySecret = strings.TrimSpace(keySecret)
	if keySecret == "" {
		return nil, errors.New("payments: razorpay key secret is required")
	}
	return &RazorpayVerifier{secret: []byte(keySecret)}, nil
}

// Verify checks signature against HMAC-SHA256(orderID + "|" + paymentID) in hex.
func (v *RazorpayVerifier) Verify(orderID, paymentID, signature string) error {
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	if orderID == "" || paymentID == "" {
		return fmt.Errorf("%w: order and payment ids are required", ErrInvalidSignature)
	}
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(provided) != sha256.Size {
		return ErrInvalidSignature
	}
	if !hmac.Equal(provided, v.sign(orderID, paymentID)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex signature Razorpay would send for the pair.
func (v *RazorpayVerifier) Sign(orderID, paymentID string) string {
	return hex.EncodeToString(v.sign(orderID, paymentID))
}

func (v *RazorpayVerifier) sign(orderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return mac.Sum(nil)
}

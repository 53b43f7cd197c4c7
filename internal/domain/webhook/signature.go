// Package webhook verifies signed payment gateway notifications.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Header names carried by a signed notification.
const (
	HeaderSignature = "X-Signature"
	HeaderRequestID = "X-Request-Id"
)

var (
	// ErrSignatureInvalid is returned for any signature that does not verify,
	// including malformed or incomplete input.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	// ErrSecretMissing is returned when the verifier was built without a secret.
	ErrSecretMissing = errors.New("webhook secret is not configured")
)

// Signature is the parsed x-signature header.
type Signature struct {
	Timestamp string
	V1        string
}

// ParseSignatureHeader parses "ts=<ts>,v1=<hex>". Parts may appear in any
// order and carry surrounding whitespace; unknown keys are ignored.
func ParseSignatureHeader(header string) (Signature, error) {
	var sig Signature
	for part := range strings.SplitSeq(header, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			sig.Timestamp = strings.TrimSpace(value)
		case "v1":
			sig.V1 = strings.TrimSpace(value)
		}
	}
	if sig.Timestamp == "" || sig.V1 == "" {
		return sig, ErrSignatureInvalid
	}
	return sig, nil
}

// Manifest builds the signed string for a notification.
func Manifest(id, requestID, ts string) string {
	var b strings.Builder
	b.Grow(len(id) + len(requestID) + len(ts) + 24)
	b.WriteString("id:")
	b.WriteString(id)
	b.WriteString(";request-id:")
	b.WriteString(requestID)
	b.WriteString(";ts:")
	b.WriteString(ts)
	b.WriteString(";")
	return b.String()
}

// Input carries the values a notification is verified against.
type Input struct {
	// PaymentID is the resource id taken from the notification.
	PaymentID string
	// RequestID is the x-request-id header.
	RequestID string
	// SignatureHeader is the raw x-signature header.
	SignatureHeader string
}

// Verifier checks notification signatures against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier. The secret is trimmed before use.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(strings.TrimSpace(secret))}
}

// Sign returns the lower-case hex HMAC-SHA256 of the manifest.
func (v *Verifier) Sign(id, requestID, ts string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(Manifest(id, requestID, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader renders a complete x-signature header value.
func (v *Verifier) SignatureHeader(id, requestID, ts string) string {
	return "ts=" + ts + ",v1=" + v.Sign(id, requestID, ts)
}

// Verify returns nil only when every component is present and the
// provided v1 equals the computed HMAC.
func (v *Verifier) Verify(in Input) error {
	if len(v.secret) == 0 {
		return ErrSecretMissing
	}
	if in.PaymentID == "" || in.RequestID == "" {
		return ErrSignatureInvalid
	}
	sig, err := ParseSignatureHeader(in.SignatureHeader)
	if err != nil {
		return err
	}

	expected := v.Sign(in.PaymentID, in.RequestID, sig.Timestamp)
	if !hmac.Equal([]byte(expected), []byte(sig.V1)) {
		return ErrSignatureInvalid
	}
	return nil
}

package httphandler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const signaturePrefix = "sha256="

// Signature verification failures.
var (
	ErrSecretNotConfigured = errors.New("webhook secret not configured")
	ErrMissingSignature    = errors.New("missing signature")
	ErrInvalidSignature    = errors.New("invalid signature")
)

// SignatureVerifier checks X-Hub-Signature-256 headers.
type SignatureVerifier struct {
	secret        []byte
	allowUnsigned bool
}

// NewSignatureVerifier creates a verifier. With an empty secret, deliveries
// are accepted unsigned unless production is true, in which case every
// delivery is rejected.
func NewSignatureVerifier(secret string, production bool) *SignatureVerifier {
	return &SignatureVerifier{
		secret:        []byte(secret),
		allowUnsigned: secret == "" && !production,
	}
}

// Enabled reports whether deliveries are checked against a secret.
func (v *SignatureVerifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify checks header against the HMAC-SHA256 of body in constant time.
func (v *SignatureVerifier) Verify(body []byte, header string) error {
	if len(v.secret) == 0 {
		if v.allowUnsigned {
			return nil
		}
		return ErrSecretNotConfigured
	}

	if header == "" {
		return ErrMissingSignature
	}
	hexSig, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return ErrInvalidSignature
	}

	if !hmac.Equal(got, Sign(v.secret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHeader formats an X-Hub-Signature-256 value for body.
func SignatureHeader(secret, body []byte) string {
	return signaturePrefix + hex.EncodeToString(Sign(secret, body))
}

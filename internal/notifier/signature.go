package notifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// SignatureHeader carries the payload signature on published messages.
const SignatureHeader = "X-Signature"

// Sign returns the HMAC-SHA256 of payload keyed by secret, formatted as sha256=<hex>.
func Sign(payload []byte, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret cannot be empty")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether signature matches payload under secret.
func Verify(payload []byte, secret, signature string) bool {
	expected, err := Sign(payload, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}

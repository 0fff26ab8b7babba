package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw webhook
// body, keyed with the channel's signing secret.
const SignatureHeader = "X-Reachflow-Signature"

// SignBody computes the expected signature for a webhook body.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := SignBody(secret, body)

	return hmac.Equal([]byte(expected), []byte(signature))
}

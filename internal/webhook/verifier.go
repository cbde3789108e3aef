package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks the HMAC-SHA256 hex signature Dwolla sends over
// the exact raw payload bytes. Returns false, never panics, on a missing
// header or secret. Callers reject with 401 and must not persist the
// payload when this fails.
func VerifySignature(rawBody []byte, signatureHeader, secret string) bool {
	if signatureHeader == "" || secret == "" {
		return false
	}

	provided, err := hex.DecodeString(signatureHeader)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	expected := mac.Sum(nil)

	return hmac.Equal(provided, expected)
}

// SignPayload computes the hex signature for a payload. Test helper.
func SignPayload(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

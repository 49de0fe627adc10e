package common

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sha256Hex returns the lowercase hex SHA-256 of input. Used for cache and
// idempotency keys.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// SignHex is HMAC-SHA256 over the parts joined by ".", hex encoded.
func SignHex(secret string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strings.Join(parts, ".")))
	return hex.EncodeToString(mac.Sum(nil))
}

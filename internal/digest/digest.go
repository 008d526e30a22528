// Package digest computes content-integrity stamps for audit entries.
// A stamp detects accidental corruption; it is not a signature.
package digest

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Size is the length of a hex-encoded stamp.
const Size = sha256.Size * 2

// Sum returns the lowercase hex SHA-256 of the UTF-8 bytes of s.
func Sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Join concatenates fields with "|" in the order given.
func Join(fields ...string) string {
	return strings.Join(fields, "|")
}

// Short truncates a stamp for display. The stored value is never truncated.
func Short(stamp string, n int) string {
	if n <= 0 || len(stamp) <= n {
		return stamp
	}
	return stamp[:n] + "..."
}

// Equal compares two stamps in constant time, ignoring hex case.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(a)), []byte(strings.ToLower(b))) == 1
}

// Package fingerprint maps extracted content to a fixed-size digest used for
// change detection. It is an equality test, not a security primitive.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

// Of returns the lower-case hex SHA-256 of the UTF-8 bytes of content.
func Of(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Equal compares a stored fingerprint with a fresh one. A nil stored value
// never equals anything.
func Equal(stored *string, fresh string) bool {
	return stored != nil && *stored == fresh
}

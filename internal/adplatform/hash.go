package adplatform

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashIdentifier normalizes and SHA-256 hashes a match key the way audience
// APIs expect: lowercased, trimmed, hex digest. Empty input stays empty.
func HashIdentifier(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// HashPhone strips formatting characters before hashing so the same number
// always produces the same digest.
func HashPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	return HashIdentifier(b.String())
}

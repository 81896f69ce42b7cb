package groups

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// TokenPrefixLength is the number of plaintext characters kept for display.
const TokenPrefixLength = 8

// generateToken returns a 32-byte random join token encoded as URL-safe
// base64 without padding (43 characters).
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate join token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken hashes a join token using SHA-256.
// Returns the hash as a URL-safe base64 string.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func tokenPrefix(token string) string {
	if len(token) <= TokenPrefixLength {
		return token
	}
	return token[:TokenPrefixLength]
}

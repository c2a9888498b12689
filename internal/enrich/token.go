package enrich

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 32

// NewToken returns a fresh signing token and its digest. Only the digest is
// persisted.
func NewToken() (token, digest string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate access token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, Digest(token), nil
}

// Digest is the hex SHA-256 of a token.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const resetTokenBytes = 16

// randRead is a seam for tests that simulate an entropy failure.
var randRead = rand.Read

// generateResetToken returns 16 random bytes as hex.
func generateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return hex.EncodeToString(b), nil
}

// hashToken is what gets stored; only the emailed link carries the plaintext.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

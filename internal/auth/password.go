// ABOUTME: bcrypt hashing for delegated principal credentials
// ABOUTME: Includes a dummy comparison to keep unknown-identifier timing constant

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no stored hash exists so the
// response time does not reveal whether the identifier is known.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMye.IjqQBXRCJGSnYq6VUZB5M6eX5p1qGm"

// HashSecret hashes a plaintext secret with bcrypt.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret reports whether secret matches the bcrypt hash.
func VerifySecret(secret, hash string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(secret))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword bcrypt-hashes an account password for storage on the user
// record. Cost stays at the library default; registration is not a hot path.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash account password: %w", err)
	}
	return string(hashed), nil
}

// CheckPasswordHash reports whether a login attempt's plaintext matches the
// stored hash. The bcrypt mismatch error carries nothing a caller can act
// on, so it collapses to a bool.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

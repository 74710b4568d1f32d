package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength matches what the registration form enforces.
const MinPasswordLength = 6

// PasswordHasher hashes credentials at a fixed bcrypt cost.
type PasswordHasher struct {
	cost int
	// compared against when the login handle is unknown, so both failure paths cost one bcrypt run
	dummyHash []byte
}

func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("agri-connect"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}
	return &PasswordHasher{cost: cost, dummyHash: dummy}, nil
}

// HashPassword generates a bcrypt hash of the password.
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plaintext password with a stored bcrypt hash.
func (h *PasswordHasher) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// BurnCompare spends the time of one comparison and always fails.
func (h *PasswordHasher) BurnCompare(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

// Package accounts holds the credential rules shared by identity providers.
package accounts

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/aretw0/notesync/pkg/core"
)

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRegistration checks the inputs of a new account.
func ValidateRegistration(email, password string) error {
	if !strings.Contains(NormalizeEmail(email), "@") {
		return fmt.Errorf("invalid email %q: %w", email, core.ErrInvalidCredentials)
	}
	if len(password) < core.MinPasswordLength {
		return core.ErrWeakPassword
	}
	return nil
}

// HashPassword hashes the password with the given bcrypt cost.
// A cost of zero uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// CheckPassword compares a password with its hash.
// A mismatch yields core.ErrInvalidCredentials.
func CheckPassword(hash []byte, password string) error {
	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return core.ErrInvalidCredentials
	}
	return err
}

package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and checks passwords with bcrypt at a fixed cost.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// bcryptMaxInput is the most bcrypt reads of a password. Longer input is
// truncated, which keeps hashes made by other bcrypt implementations valid.
const bcryptMaxInput = 72

func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptMaxInput {
		b = b[:bcryptMaxInput]
	}
	return b
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Compare reports whether password matches hash. A malformed hash is an error,
// a plain mismatch is not.
func (h *PasswordHasher) Compare(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to compare password: %w", err)
}

// PasswordSpecials are the only non-alphanumeric characters a password may contain.
const PasswordSpecials = "@$!%*?&"

// ValidatePasswordStrength enforces password complexity rules:
// - Minimum 8 characters
// - At least 1 uppercase letter
// - At least 1 lowercase letter
// - At least 1 digit
// - At least 1 of PasswordSpecials
// - Nothing outside ASCII letters, digits and PasswordSpecials
func ValidatePasswordStrength(password string) error {
	var (
		hasUpper   bool
		hasLower   bool
		hasDigit   bool
		hasSpecial bool
		hasOther   bool
	)

	for _, ch := range password {
		switch {
		case ch >= 'A' && ch <= 'Z':
			hasUpper = true
		case ch >= 'a' && ch <= 'z':
			hasLower = true
		case ch >= '0' && ch <= '9':
			hasDigit = true
		case strings.ContainsRune(PasswordSpecials, ch):
			hasSpecial = true
		default:
			hasOther = true
		}
	}

	var failures []string

	if len(password) < 8 {
		failures = append(failures, "at least 8 characters")
	}
	if !hasUpper {
		failures = append(failures, "at least 1 uppercase letter")
	}
	if !hasLower {
		failures = append(failures, "at least 1 lowercase letter")
	}
	if !hasDigit {
		failures = append(failures, "at least 1 digit")
	}
	if !hasSpecial {
		failures = append(failures, "at least 1 of "+PasswordSpecials)
	}

	if len(failures) > 0 {
		return fmt.Errorf("password must contain %s", strings.Join(failures, ", "))
	}
	if hasOther {
		return fmt.Errorf("password may only contain letters, digits and %s", PasswordSpecials)
	}

	return nil
}

package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// User is an account that can hold sessions and organization memberships.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"` // stored lower-cased; unique case-insensitively
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail reports whether email is a bare address (no display name).
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("email is invalid")
	}
	return nil
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	u.Email = NormalizeEmail(u.Email)
	return ValidateEmail(u.Email)
}

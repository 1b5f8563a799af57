package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

const MinPasswordLength = 6

type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	GoogleID       string     `json:"-"`
	IsOAuth        bool       `json:"isOAuth"`
	Picture        string     `json:"picture,omitempty"`
	Locale         string     `json:"locale,omitempty"`
	ResetTokenHash string     `json:"-"`
	ResetExpires   *time.Time `json:"-"`
	ResetAttempts  int        `json:"-"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

var (
	ErrEmptyName        = errors.New("name is required")
	ErrInvalidEmail     = errors.New("a valid email is required")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrMissingPassword  = errors.New("password is required unless signing in with Google")
)

// NormalizeEmail lower-cases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	if !u.IsOAuth && u.PasswordHash == "" {
		return ErrMissingPassword
	}
	return nil
}

// ResetPending reports whether a password reset token is outstanding.
func (u User) ResetPending(now time.Time) bool {
	return u.ResetTokenHash != "" && u.ResetExpires != nil && u.ResetExpires.After(now)
}

// Package models defines the records the auth service stores.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Defaults applied to accounts created through Google sign-in.
const (
	DefaultSubscriptionPlan = 1
	DefaultStatus           = 1
	DefaultAccountType      = 1
)

// User represents a person able to authenticate.
type User struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	PasswordHash      *string   `json:"-"`
	GoogleID          *string   `json:"-"`
	EmailVerified     bool      `json:"email_verified"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	GivenName         *string   `json:"given_name,omitempty"`
	SubscriptionPlan  int       `json:"subscription_plan"`
	Status            int       `json:"status"`
	AccountType       int       `json:"type"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasPassword reports whether the user can sign in with a password.
// Accounts created through Google sign-in have none.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// SessionToken binds a bearer token to a user until it expires.
type SessionToken struct {
	Token     string    `json:"-"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the token is past its expiry at now.
func (s *SessionToken) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Package auth issues and verifies the JWT bearer tokens the API runs on.
// Login returns two tokens: a short-lived session token and a long-lived
// API token for machine callers.
package auth

import (
	"errors"
	"time"
)

// User is an account allowed to call the API.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Login        string    `json:"login" db:"login"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	SessionToken string `json:"session_token"`
	APIToken     string `json:"api_token"`
}

var (
	// ErrInvalidCredentials covers unknown logins, wrong passwords and
	// disabled accounts alike.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrDuplicateLogin indicates the login is already taken.
	ErrDuplicateLogin = errors.New("auth: login already registered")
	// ErrInvalidToken indicates a missing, malformed or expired token.
	ErrInvalidToken = errors.New("auth: invalid token")
)

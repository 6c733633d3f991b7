package models

import "time"

// User is an account known to the identity provider.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`

	PasswordHash string `json:"-"`
}

// Session is an issued sign-in token.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

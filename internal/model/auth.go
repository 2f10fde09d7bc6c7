package model

import "time"

type RegisterRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type ResetRequest struct {
	Email string `json:"email" form:"email"`
}

type ResetConfirmRequest struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}

type ProfileUpdateRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// SessionCheckResponse is the uniform answer of the validation endpoint.
// It never carries a reason for invalidity.
type SessionCheckResponse struct {
	Valid       bool   `json:"valid"`
	PrincipalID string `json:"principalId,omitempty"`
}

type User struct {
	ID            string
	Name          *string
	Email         string
	PasswordHash  *string
	Image         *string
	EmailVerified *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Session is one authenticated login. The opaque token is the primary key;
// expiry is absolute and never extended.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

type PasswordResetToken struct {
	ID        string
	Email     string
	Token     string
	ExpiresAt time.Time
}

type ErrorResponse struct {
	Error string `json:"error"`
}

package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username  string `json:"username" validate:"required"`
	PIN       string `json:"pin" validate:"required,len=6,numeric"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username  string   `json:"username" validate:"required,min=2,max=32"`
	PIN       string   `json:"pin" validate:"required,len=6,numeric"`
	Category  Category `json:"category" validate:"required,category"`
	IP        string   `json:"-"`
	UserAgent string   `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePINRequest payload for updating the PIN.
type ChangePINRequest struct {
	OldPIN string `json:"old_pin" validate:"required,len=6,numeric"`
	NewPIN string `json:"new_pin" validate:"required,len=6,numeric"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Category Category `json:"category"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Category Category `json:"category"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Viewer converts claims into the user shape the rules engine consumes.
func (c *JWTClaims) Viewer() User {
	return User{
		ID:       c.UserID,
		Username: c.Username,
		Category: c.Category,
		Role:     c.Role,
	}
}

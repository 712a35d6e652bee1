package models

import "github.com/golang-jwt/jwt/v5"

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	UserID   string   `json:"uid"`
	Role     UserRole `json:"role"`
	FullName string   `json:"name"`
	jwt.RegisteredClaims
}

// Identity converts claims into the caller identity context.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Role: c.Role, Name: c.FullName}
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        *User  `json:"user"`
}

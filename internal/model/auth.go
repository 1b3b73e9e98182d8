package model

import (
	"time"
)

// LoginRequest authenticates the agency administrator.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,min=8"`
}

// ClientTokenRequest asks for a client-role token on behalf of a client id.
type ClientTokenRequest struct {
	ClientID string `json:"client_id" binding:"required,max=128"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Role        string    `json:"role"`
	Subject     string    `json:"subject"`
	ExpiresAt   time.Time `json:"expires_at"`
}

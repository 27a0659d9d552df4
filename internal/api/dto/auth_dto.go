package dto

import "time"

// TokenRequest exchanges the operator key for a token.
type TokenRequest struct {
	Key  string `json:"key"`
	Role string `json:"role"`
}

// TokenResponse contains the issued JWT.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

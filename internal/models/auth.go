package models

import "github.com/golang-jwt/jwt/v5"

// RequestCodeRequest asks for a one-time login code.
type RequestCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyCodeRequest exchanges a code for a session token.
type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// SessionResponse carries the issued session token.
type SessionResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// SessionClaims are the JWT claims embedded in a session token.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

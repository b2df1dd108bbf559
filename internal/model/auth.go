package model

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthRequest types
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse types
type TokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   int64   `json:"expires_in"`
	Doctor      *Doctor `json:"doctor"`
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	DoctorID uuid.UUID `json:"doctor_id"`
	Email    string    `json:"email"`
	IsAdmin  bool      `json:"is_admin"`
}

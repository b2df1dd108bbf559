package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

const issuer = "queue-api"

// TokenManager issues and verifies HS256 access tokens for doctors.
type TokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), expiry: expiry, now: time.Now}
}

func (m *TokenManager) Expiry() time.Duration { return m.expiry }

func (m *TokenManager) Generate(doctor *model.Doctor) (string, error) {
	now := m.now()
	claims := model.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   doctor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
		DoctorID: doctor.ID,
		Email:    doctor.Email,
		IsAdmin:  doctor.IsAdmin,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (m *TokenManager) Validate(tokenString string) (*model.TokenClaims, error) {
	claims := &model.TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing doctor id", ErrInvalidToken)
	}
	return claims, nil
}

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
)

// Issuer is stamped on every token and required on validation.
const Issuer = "pos-loyalty"

type Claims struct {
	UserID uuid.UUID
	Email  string
	Role   domain.UserRole
}

type roleClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

func GenerateToken(user *domain.User, secret string, expiry time.Duration) (string, error) {
	issued := time.Now()
	rc := roleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(expiry)),
		},
		Email: user.Email,
		Role:  string(user.Role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, rc).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(raw string, secret string) (*Claims, error) {
	var rc roleClaims
	_, err := jwt.ParseWithClaims(raw, &rc,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	userID, err := uuid.Parse(rc.Subject)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: subject is not a user id: %w", err)
	}

	role := domain.UserRole(rc.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("ValidateToken: unknown role %q", rc.Role)
	}

	return &Claims{UserID: userID, Email: rc.Email, Role: role}, nil
}

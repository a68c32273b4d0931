package utils

import (
	"errors"
	"time"

	"orusfx/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "orusfx"

// GenerateToken signs an HS256 access token for principalID.
func GenerateToken(secret string, principalID, walletID uuid.UUID, ttl time.Duration) (string, error) {
	return GenerateTokenWithRole(secret, principalID, walletID, "", ttl)
}

// GenerateServiceToken signs a token carrying models.RoleService.
func GenerateServiceToken(secret string, principalID uuid.UUID, ttl time.Duration) (string, error) {
	return GenerateTokenWithRole(secret, principalID, uuid.Nil, models.RoleService, ttl)
}

func GenerateTokenWithRole(secret string, principalID, walletID uuid.UUID, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	claims := models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   principalID.String(),
		},
		PrincipalID: principalID,
		WalletID:    walletID,
		Role:        role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken parses and validates a JWT token string.
func ParseToken(secret, tokenStr string) (*models.Claims, error) {
	if secret == "" {
		return nil, errors.New("JWT secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenStr, &models.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.PrincipalID == uuid.Nil {
		return nil, errors.New("token has no principal")
	}
	return claims, nil
}

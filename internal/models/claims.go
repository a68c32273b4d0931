package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleService marks tokens issued to trusted integrations. It grants the
// reservation and metrics routes, never wallet ownership.
const RoleService = "service"

// Claims identifies the principal behind a request. WalletID is optional
// and only names the principal's default wallet.
type Claims struct {
	jwt.RegisteredClaims
	PrincipalID uuid.UUID `json:"principal_id"`
	WalletID    uuid.UUID `json:"wallet_id,omitempty"`
	Role        string    `json:"role,omitempty"`
}

func (c *Claims) HasRole(role string) bool {
	return c != nil && role != "" && c.Role == role
}

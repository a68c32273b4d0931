package utils

import (
	"testing"
	"time"

	"orusfx/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Roles(t *testing.T) {
	principal := uuid.New()

	userTok, err := GenerateToken("secret", principal, uuid.Nil, time.Minute)
	require.NoError(t, err)
	claims, err := ParseToken("secret", userTok)
	require.NoError(t, err)
	assert.Equal(t, principal, claims.PrincipalID)
	assert.False(t, claims.HasRole(models.RoleService))

	svcTok, err := GenerateServiceToken("secret", principal, time.Minute)
	require.NoError(t, err)
	claims, err = ParseToken("secret", svcTok)
	require.NoError(t, err)
	assert.True(t, claims.HasRole(models.RoleService))

	_, err = ParseToken("other", svcTok)
	assert.Error(t, err)
}

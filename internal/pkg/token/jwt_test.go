package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService("segredo-de-teste", time.Hour)

	tok, err := svc.GenerateToken("importer", RoleEditor)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "importer", claims.Subject)
	assert.Equal(t, RoleEditor, claims.Role)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	tok, err := NewService("a", time.Hour).GenerateToken("ops", RoleAdmin)
	require.NoError(t, err)

	_, err = NewService("b", time.Hour).ValidateToken(tok)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewService("segredo", time.Minute)
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }

	tok, err := svc.GenerateToken("ops", RoleAdmin)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(tok)
	assert.Error(t, err)
}

func TestGenerateToken_RequiresSubjectAndRole(t *testing.T) {
	_, err := NewService("s", time.Hour).GenerateToken("", RoleAdmin)
	assert.Error(t, err)
}

package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 15*time.Minute)
	userID := uuid.New()

	token, err := m.Generate(userID, RoleProvider)
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RoleProvider, claims.Role)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", 15*time.Minute).Generate(uuid.New(), RoleCustomer)
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", 15*time.Minute).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	m := NewJWTManager("secret", -time.Minute)
	token, err := m.Generate(uuid.New(), RoleCustomer)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	_, err := m.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

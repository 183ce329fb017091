package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

const testSecret = "unit-test-signing-secret"

func TestValidateToken_RoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken([]byte(testSecret), "user-42", time.Hour)
	req.NoError(err)

	userID, err := ValidateToken([]byte(testSecret), token)
	req.NoError(err)
	req.Equal("user-42", userID)
}

func TestValidateToken_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken([]byte(testSecret), "user-42", -time.Minute)
	req.NoError(err)

	_, err = ValidateToken([]byte(testSecret), token)
	req.ErrorIs(err, errors.ErrInvalidCredential)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken([]byte("another-secret"), "user-42", time.Hour)
	req.NoError(err)

	_, err = ValidateToken([]byte(testSecret), token)
	req.ErrorIs(err, errors.ErrInvalidCredential)
}

func TestValidateToken_Garbage(t *testing.T) {
	req := require.New(t)

	_, err := ValidateToken([]byte(testSecret), "not-a-jwt")
	req.ErrorIs(err, errors.ErrInvalidCredential)
}

func TestGate_Authenticate_QueryParameter(t *testing.T) {
	req := require.New(t)
	gate := NewGate(testSecret)

	token, err := GenerateToken([]byte(testSecret), "user-42", time.Hour)
	req.NoError(err)

	r := httptest.NewRequest("GET", "/ws?token="+token, nil)
	userID, err := gate.Authenticate(r)
	req.NoError(err)
	req.Equal("user-42", userID)
}

func TestGate_Authenticate_BearerHeader(t *testing.T) {
	req := require.New(t)
	gate := NewGate(testSecret)

	token, err := GenerateToken([]byte(testSecret), "user-42", time.Hour)
	req.NoError(err)

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	userID, err := gate.Authenticate(r)
	req.NoError(err)
	req.Equal("user-42", userID)
}

func TestGate_Authenticate_Missing(t *testing.T) {
	req := require.New(t)
	gate := NewGate(testSecret)

	r := httptest.NewRequest("GET", "/ws", nil)
	_, err := gate.Authenticate(r)
	req.ErrorIs(err, errors.ErrMissingCredential)
}

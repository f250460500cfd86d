package models

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	assert.NoError(t, err)
	return token
}

func TestCredentialFromToken(t *testing.T) {
	issued := time.Now().Add(-time.Hour)
	expires := time.Now().Add(23 * time.Hour)
	token := signedToken(t, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	})

	credential, err := CredentialFromToken(token)
	assert.NoError(t, err)
	assert.Equal(t, token, credential.Token)
	assert.Equal(t, issued.Unix(), credential.IssuedAt.Unix())
	assert.Equal(t, expires.Unix(), credential.ExpiresAt.Unix())
}

func TestCredentialFromTokenMalformed(t *testing.T) {
	_, err := CredentialFromToken("not-a-token")
	assert.ErrorIs(t, err, ErrMalformedCredential)
}

func TestCredentialFromTokenWithoutClaims(t *testing.T) {
	token := signedToken(t, jwt.RegisteredClaims{})
	credential, err := CredentialFromToken(token)
	assert.NoError(t, err)
	assert.True(t, credential.IssuedAt.IsZero())
	assert.True(t, credential.ExpiresAt.IsZero())
}

func TestTimeToExpiry(t *testing.T) {
	now := time.Now()
	credential := SessionCredential{ExpiresAt: now.Add(90 * time.Minute)}
	assert.Equal(t, 90*time.Minute, credential.TimeToExpiry(now))

	expired := SessionCredential{ExpiresAt: now.Add(-time.Minute)}
	assert.Less(t, expired.TimeToExpiry(now), time.Duration(0))
}

func TestTimeToExpiryWithoutExpiry(t *testing.T) {
	credential := SessionCredential{}
	assert.Greater(t, credential.TimeToExpiry(time.Now()), 1000*time.Hour)
}

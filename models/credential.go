package models

import (
	"errors"
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMalformedCredential = errors.New("malformed credential token")

// SessionCredential is the opaque bearer token backing a transport
// session, together with the issuance and expiry timestamps extracted
// from it. It is issued and refreshed by an external auth collaborator
// and read-only to the sync layer.
type SessionCredential struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// CredentialFromToken extracts the iat/exp claims from a bearer token.
// The signature is NOT verified here: validating the token is the auth
// collaborator's job, the sync layer only needs the timestamps to know
// when to swap or refresh the session.
func CredentialFromToken(token string) (SessionCredential, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return SessionCredential{}, ErrMalformedCredential
	}

	credential := SessionCredential{Token: token}
	if claims.IssuedAt != nil {
		credential.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		credential.ExpiresAt = claims.ExpiresAt.Time
	}
	return credential, nil
}

// TimeToExpiry returns how long the credential remains valid. Zero or
// negative means expired; a zero ExpiresAt means the token carries no
// expiry and never triggers a proactive refresh.
func (c SessionCredential) TimeToExpiry(now time.Time) time.Duration {
	if c.ExpiresAt.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return c.ExpiresAt.Sub(now)
}

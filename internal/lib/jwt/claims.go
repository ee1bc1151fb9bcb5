// Package jwt implements the portal session token: generation and parsing of
// signed JWTs carrying the subscriber identity.
//
// The billing platform session token obtained at login is embedded in the
// claims, so the billing facade can reuse the upstream session for the
// lifetime of the portal token instead of re-authenticating per call.
package jwt

import (
	"time"
)

// Maker describes generation and parsing of portal session tokens.
type Maker interface {
	// GenerateToken signs a token for the given subscriber identity.
	GenerateToken(subscriberID int64, uispCustomerID, email, uispToken string) (string, error)
	// ParseToken validates a token and returns its claims. An expired token
	// yields ErrTokenExpired, any other defect ErrTokenInvalid.
	ParseToken(tokenStr string) (*SessionClaims, error)
}

// MakerImpl implements Maker with an HS256 secret key and a token TTL.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker creates a MakerImpl from the secret key and TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

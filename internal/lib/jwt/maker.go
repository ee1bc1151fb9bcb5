package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired reports a token whose expiry has passed. It is distinct
// from ErrTokenInvalid so handlers can tell the subscriber to log in again
// rather than treat the token as forged.
var ErrTokenExpired = errors.New("token has expired")

// ErrTokenInvalid reports a malformed token or a bad signature.
var ErrTokenInvalid = errors.New("invalid token")

// SessionClaims is the payload carried by a portal session token.
type SessionClaims struct {
	SubscriberID   int64  `json:"subscriber_id"`
	UISPCustomerID string `json:"uisp_customer_id"`
	Email          string `json:"email"`
	UISPToken      string `json:"uisp_token,omitempty"`

	jwt.RegisteredClaims
}

// GenerateToken creates a signed HS256 token for the given identity with the
// configured TTL.
func (j *MakerImpl) GenerateToken(subscriberID int64, uispCustomerID, email, uispToken string) (string, error) {
	claims := SessionClaims{
		SubscriberID:   subscriberID,
		UISPCustomerID: uispCustomerID,
		Email:          email,
		UISPToken:      uispToken,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken parses a token, checks its signature and validity and returns
// the SessionClaims. Expiry is reported as ErrTokenExpired, every other
// defect as ErrTokenInvalid.
func (j *MakerImpl) ParseToken(tokenStr string) (*SessionClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}
	return claims, nil
}

package defects

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims only carries the user's email. Role and login are
// resolved from storage on every request so they never go stale.
type JWTClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Subject returns the email claim
func (c *JWTClaims) Subject() string {
	return c.Email
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}

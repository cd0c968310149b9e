package defects

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// UserLocalsKey is the request store key holding the resolved *User
const UserLocalsKey = "current_user"

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the JWTClaims in the given context
func WithClaimsContext(r context.Context, claims *JWTClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the JWTClaims from the standard context
func GetClaims(ctx context.Context) (*JWTClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*JWTClaims)
	return raw, ok && raw != nil
}

// CurrentUser returns the user the Guard resolved for this request
func CurrentUser(c router.Context) (*User, bool) {
	if u := router.GetContextValue[*User](c, UserLocalsKey, nil); u != nil {
		return u, true
	}
	return FromContext(c.Context())
}

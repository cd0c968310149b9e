package defects

import (
	"context"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-defects/middleware/jwtware"
)

// UserResolver looks up the user behind an email claim
type UserResolver interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Guard resolves the current user on every protected request. Nothing
// is cached so role and confirmation changes apply immediately.
type Guard struct {
	tokens TokenService
	users  UserResolver
	logger Logger
}

func NewGuard(tokens TokenService, users UserResolver) *Guard {
	return &Guard{
		tokens: tokens,
		users:  users,
		logger: defLogger{},
	}
}

func (g *Guard) WithLogger(logger Logger) *Guard {
	g.logger = normalizeLogger(logger)
	return g
}

// Resolve runs the guard checks against a raw bearer token
func (g *Guard) Resolve(ctx context.Context, rawToken string) (*User, error) {
	claims, err := g.tokens.Validate(rawToken)
	if err != nil {
		return nil, err
	}
	return g.resolveClaims(ctx, claims)
}

func (g *Guard) resolveClaims(ctx context.Context, claims *JWTClaims) (*User, error) {
	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return nil, ErrUnauthenticated
	}

	user, err := g.users.GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve user")
	}

	if user.IsPending() {
		return nil, ErrConfirmEmail
	}

	return user, nil
}

// Middleware protects a route group. Rejections are returned as errors
// so the app ErrorHandler renders them.
func (g *Guard) Middleware() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ContextKey: "claims",
		TokenValidator: jwtware.TokenValidatorFunc(func(raw string) (jwtware.Claims, error) {
			claims, err := g.tokens.Validate(raw)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
		ValidationListeners: []jwtware.ValidationListener{
			func(c router.Context, raw jwtware.Claims) error {
				claims, ok := raw.(*JWTClaims)
				if !ok {
					return ErrTokenMalformed
				}

				user, err := g.resolveClaims(c.Context(), claims)
				if err != nil {
					return err
				}

				c.Set(UserLocalsKey, user)
				ctx := WithClaimsContext(c.Context(), claims)
				c.SetContext(WithContext(ctx, user))
				return nil
			},
		},
		ErrorHandler: func(_ router.Context, err error) error {
			return g.normalizeError(err)
		},
	})
}

func (g *Guard) normalizeError(err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return ErrUnauthenticated
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	g.logger.Info("guard rejected request", "error", err)
	return ErrUnauthenticated
}

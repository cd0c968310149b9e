package defects

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService issues and verifies bearer tokens
type TokenService interface {
	Generate(email string) (string, error)
	GenerateWithTTL(email string, ttl time.Duration) (string, error)
	Validate(tokenString string) (*JWTClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	logger          Logger
	clock           Clock
}

// NewTokenService creates a new TokenService instance, tokenExpiration is in hours
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, logger Logger) *TokenServiceImpl {
	return &TokenServiceImpl{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		logger:          normalizeLogger(logger),
		clock:           time.Now,
	}
}

// WithClock overrides the time source
func (ts *TokenServiceImpl) WithClock(clock Clock) *TokenServiceImpl {
	if clock != nil {
		ts.clock = clock
	}
	return ts
}

// Generate creates a token for email using the configured expiration
func (ts *TokenServiceImpl) Generate(email string) (string, error) {
	return ts.GenerateWithTTL(email, time.Duration(ts.tokenExpiration)*time.Hour)
}

// GenerateWithTTL creates a token for email valid for ttl
func (ts *TokenServiceImpl) GenerateWithTTL(email string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", errors.New("email claim must not be empty", errors.CategoryInternal)
	}

	now := ts.clock()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string. Any error means the
// caller is unauthenticated.
func (ts *TokenServiceImpl) Validate(tokenString string) (*JWTClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithCode(ErrTokenMalformed.Code).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrTokenMalformed
	}

	if strings.TrimSpace(claims.Email) == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

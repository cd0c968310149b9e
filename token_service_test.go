package defects_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	defects "github.com/goliatone/go-defects"
)

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	ts := defects.NewTokenService([]byte("test-signing-key"), 24, "defects-test", nopLogger{})

	token, err := ts.Generate("ivan@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, "ivan@example.com", claims.Email)
	assert.Equal(t, "ivan@example.com", claims.Subject())
	assert.Equal(t, "defects-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.Expires(), time.Minute)
}

func TestTokenServiceOnlyEmailClaim(t *testing.T) {
	ts := defects.NewTokenService([]byte("test-signing-key"), 24, "defects-test", nopLogger{})

	token, err := ts.Generate("ivan@example.com")
	require.NoError(t, err)

	parsed := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, parsed)
	require.NoError(t, err)

	assert.Equal(t, "ivan@example.com", parsed["email"])
	assert.NotContains(t, parsed, "role")
	assert.NotContains(t, parsed, "login")
}

func TestTokenServiceExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ts := defects.NewTokenService([]byte("test-signing-key"), 1, "defects-test", nopLogger{}).
		WithClock(func() time.Time { return now })

	token, err := ts.Generate("ivan@example.com")
	require.NoError(t, err)

	_, err = ts.Validate(token)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)

	_, err = ts.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, defects.ErrTokenExpired)
	assert.True(t, defects.IsTokenExpiredError(err))
}

func TestTokenServiceRejectsForeignTokens(t *testing.T) {
	ts := defects.NewTokenService([]byte("test-signing-key"), 24, "defects-test", nopLogger{})
	other := defects.NewTokenService([]byte("another-key"), 24, "defects-test", nopLogger{})
	otherIssuer := defects.NewTokenService([]byte("test-signing-key"), 24, "someone-else", nopLogger{})

	foreign, err := other.Generate("ivan@example.com")
	require.NoError(t, err)

	wrongIssuer, err := otherIssuer.Generate("ivan@example.com")
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"wrong key":    foreign,
		"wrong issuer": wrongIssuer,
		"garbage":      "not.a.token",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Validate(raw)
			require.Error(t, err)

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, defects.TextCodeTokenMalformed, richErr.TextCode)
			assert.Equal(t, 401, richErr.Code)
		})
	}
}

func TestTokenServiceRejectsEmptyEmail(t *testing.T) {
	ts := defects.NewTokenService([]byte("test-signing-key"), 24, "defects-test", nopLogger{})

	_, err := ts.Generate("  ")
	assert.Error(t, err)

	token, err := ts.SignClaims(&defects.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "defects-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, defects.ErrTokenMalformed)
}

package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-defects/middleware/jwtware"
)

type testClaims struct {
	sub string
}

func (c testClaims) Subject() string { return c.sub }

var errBadToken = errors.New("token is malformed")

func stubValidator() jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(raw string) (jwtware.Claims, error) {
		if raw == "good-token" {
			return testClaims{sub: "alice@example.com"}, nil
		}
		return nil, errBadToken
	})
}

func newServer() router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{DisableStartupMessage: true})
	})
}

func newApp(cfg jwtware.Config) *fiber.App {
	srv := newServer()
	srv.Router().Get("/", func(ctx router.Context) error {
		claims, _ := ctx.Get("claims", nil).(jwtware.Claims)
		if claims == nil {
			return ctx.Send(nil)
		}
		return ctx.Send([]byte(claims.Subject()))
	}, jwtware.New(cfg))
	return srv.WrappedRouter()
}

func doRequest(t *testing.T, app *fiber.App, target string, headers map[string]string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

//--------------------------------------------------------------------------------------
// Tests
//--------------------------------------------------------------------------------------

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	app := newApp(jwtware.Config{TokenValidator: stubValidator()})

	status, body := doRequest(t, app, "/", map[string]string{"Authorization": "Bearer good-token"})
	if status != http.StatusOK {
		t.Fatalf("expected 200 for valid token, got %d", status)
	}
	if body != "alice@example.com" {
		t.Errorf("expected subject in context store, got %q", body)
	}

	status, _ = doRequest(t, app, "/", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing token, got %d", status)
	}

	status, _ = doRequest(t, app, "/", map[string]string{"Authorization": "Bearer bad-token"})
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", status)
	}
}

func TestJWTWare_MalformedHeader(t *testing.T) {
	var got error
	app := newApp(jwtware.Config{
		TokenValidator: stubValidator(),
		ErrorHandler: func(ctx router.Context, err error) error {
			got = err
			return ctx.NoContent(http.StatusUnauthorized)
		},
	})

	cases := []string{
		"good-token",
		"Bearer",
		"Bearer ",
		"Basic good-token",
		"Bearergood-token",
	}

	for _, header := range cases {
		got = nil
		status, _ := doRequest(t, app, "/", map[string]string{"Authorization": header})
		if status != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, status)
		}
		if !errors.Is(got, jwtware.ErrJWTMissingOrMalformed) {
			t.Errorf("header %q: expected missing or malformed error, got %v", header, got)
		}
	}
}

func TestJWTWare_ValidatorErrorReachesHandler(t *testing.T) {
	var got error
	app := newApp(jwtware.Config{
		TokenValidator: stubValidator(),
		ErrorHandler: func(ctx router.Context, err error) error {
			got = err
			return ctx.NoContent(http.StatusUnauthorized)
		},
	})

	doRequest(t, app, "/", map[string]string{"Authorization": "Bearer expired"})
	if !errors.Is(got, errBadToken) {
		t.Fatalf("expected validator error, got %v", got)
	}
}

func TestJWTWare_CustomHeaderLookup(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: stubValidator(),
		TokenLookup:    "header:X-Api-Token",
		AuthScheme:     "Token",
	})

	status, _ := doRequest(t, app, "/", map[string]string{"X-Api-Token": "Token good-token"})
	if status != http.StatusOK {
		t.Errorf("expected custom header lookup to succeed, got %d", status)
	}

	status, _ = doRequest(t, app, "/", map[string]string{"Authorization": "Bearer good-token"})
	if status != http.StatusUnauthorized {
		t.Errorf("expected Authorization header to be ignored, got %d", status)
	}
}

func TestJWTWare_FilterFunction(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: stubValidator(),
		Filter: func(ctx router.Context) bool {
			return ctx.Query("public", "") == "1"
		},
	})

	status, _ := doRequest(t, app, "/?public=1", nil)
	if status != http.StatusOK {
		t.Errorf("expected filtered request to pass, got %d", status)
	}
}

func TestJWTWare_ValidationListeners(t *testing.T) {
	denied := errors.New("denied")
	var seen string

	app := newApp(jwtware.Config{
		TokenValidator: stubValidator(),
		ValidationListeners: []jwtware.ValidationListener{
			func(ctx router.Context, claims jwtware.Claims) error {
				seen = claims.Subject()
				return nil
			},
			func(ctx router.Context, claims jwtware.Claims) error {
				if ctx.Query("deny", "") == "1" {
					return denied
				}
				return nil
			},
		},
		ErrorHandler: func(ctx router.Context, err error) error {
			if errors.Is(err, denied) {
				return ctx.NoContent(http.StatusForbidden)
			}
			return ctx.NoContent(http.StatusUnauthorized)
		},
	})

	status, _ := doRequest(t, app, "/", map[string]string{"Authorization": "Bearer good-token"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if seen != "alice@example.com" {
		t.Errorf("expected listener to see claims, got %q", seen)
	}

	status, _ = doRequest(t, app, "/?deny=1", map[string]string{"Authorization": "Bearer good-token"})
	if status != http.StatusForbidden {
		t.Errorf("expected listener error to abort with 403, got %d", status)
	}
}

type ctxKey struct{}

func TestJWTWare_ContextEnricher(t *testing.T) {
	srv := newServer()
	api := srv.Router().Group("/api")
	api.Use(jwtware.New(jwtware.Config{
		TokenValidator: stubValidator(),
		ContextEnricher: func(ctx context.Context, claims jwtware.Claims) context.Context {
			return context.WithValue(ctx, ctxKey{}, claims.Subject())
		},
	}))
	api.Get("/me", func(ctx router.Context) error {
		v, _ := ctx.Context().Value(ctxKey{}).(string)
		return ctx.Send([]byte(v))
	})

	status, body := doRequest(t, srv.WrappedRouter(), "/api/me", map[string]string{"Authorization": "Bearer good-token"})
	if status != http.StatusOK || body != "alice@example.com" {
		t.Fatalf("expected enriched context, got %d %q", status, body)
	}

	status, _ = doRequest(t, srv.WrappedRouter(), "/api/me", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected group middleware to reject anonymous request, got %d", status)
	}
}

func TestGetExtractors(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization, header:X-Api-Token ,cookie:jwt,bogus")
	if len(extractors) != 2 {
		t.Fatalf("expected 2 header extractors, got %d", len(extractors))
	}
}

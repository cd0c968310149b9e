package defects

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth and workflow options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetPublicURL() string
	GetLandingURL() string
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
}

// IdentityProvider ensure we have a store to verify credentials
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (*User, error)
}

// Mailer delivers the registration confirmation link
type Mailer interface {
	SendConfirmation(ctx context.Context, email, link string) error
}

// FileStorage persists attachment payloads. Save returns the storage
// path that Open and Delete accept.
type FileStorage interface {
	Save(ctx context.Context, dir, name string, data []byte) (string, error)
	Open(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// Clock returns the current time, overridable in tests
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] DEFECTS " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] DEFECTS " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] DEFECTS " + format(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] DEFECTS " + format(msg, args...))
}

func format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	b.WriteString("\n")
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

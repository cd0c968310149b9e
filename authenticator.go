package defects

import (
	"context"
)

// Auther logs users in and issues bearer tokens
type Auther struct {
	provider     IdentityProvider
	tokenService TokenService
	logger       Logger
	activitySink ActivitySink
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	return &Auther{
		provider: provider,
		tokenService: NewTokenService(
			[]byte(opts.GetSigningKey()),
			opts.GetTokenExpiration(),
			opts.GetIssuer(),
			defLogger{},
		),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithTokenService replaces the default HS256 token service
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login returns a bearer token whose only custom claim is the email
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	user, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Info("Login verify identity failed", "identifier", identifier, "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	token, err := s.tokenService.Generate(user.Email)
	if err != nil {
		s.logger.Error("Login generate token error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, userActor(user), user.ID.String(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, userActor(user), user.ID.String(), map[string]any{
		"identifier": identifier,
	})

	return token, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}

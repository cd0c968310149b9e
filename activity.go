package defects

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess        ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure        ActivityEventType = "auth.login.failure"
	ActivityEventRegistrationPending ActivityEventType = "auth.registration.pending"
	ActivityEventRegistrationFailure ActivityEventType = "auth.registration.failure"
	ActivityEventAccountConfirmed    ActivityEventType = "auth.account.confirmed"
	ActivityEventDefectUpdated       ActivityEventType = "defect.updated"
)

// ActorRef identifies who triggered an event
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// LoggerActivitySink writes events to a Logger at info level
type LoggerActivitySink struct {
	Logger Logger
}

// Record implements ActivitySink.
func (s LoggerActivitySink) Record(_ context.Context, event ActivityEvent) error {
	args := []any{
		"event", string(event.EventType),
		"actor", event.Actor.ID,
		"actor_type", event.Actor.Type,
		"user_id", event.UserID,
	}
	for k, v := range event.Metadata {
		args = append(args, k, v)
	}
	normalizeLogger(s.Logger).Info("activity", args...)
	return nil
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func userActor(u *User) ActorRef {
	if u == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: u.ID.String(), Type: "user"}
}

func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink record error", "error", err)
	}
}

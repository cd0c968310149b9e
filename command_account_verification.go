package defects

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type AccountVerificationMessage struct {
	Token      string `json:"token"`
	OnResponse func(u *User)
}

func (e AccountVerificationMessage) Type() string { return "user.verify" }

// AccountVerificationHandler consumes a registration token, moving the
// user from pending to confirmed. A token works exactly once.
type AccountVerificationHandler struct {
	repo         RepositoryManager
	logger       Logger
	activitySink ActivitySink
}

func NewAccountVerificationHandler(repo RepositoryManager) *AccountVerificationHandler {
	return &AccountVerificationHandler{
		repo:         repo,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (h *AccountVerificationHandler) WithLogger(logger Logger) *AccountVerificationHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *AccountVerificationHandler) WithActivitySink(sink ActivitySink) *AccountVerificationHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *AccountVerificationHandler) Execute(ctx context.Context, event AccountVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerificationHandler) execute(ctx context.Context, event AccountVerificationMessage) error {
	token := strings.TrimSpace(event.Token)
	if token == "" {
		return ErrVerificationTokenMissing
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().ConfirmTx(ctx, tx, token)
		if err != nil {
			// unknown tokens are part of the expected flow
			if IsNotFound(err) {
				return ErrVerificationTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm account")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account verification transaction failed")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventAccountConfirmed,
		Actor:     userActor(user),
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"email": user.Email,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

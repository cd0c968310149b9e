package defects

import (
	"context"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Email           string `json:"email"`
	Login           string `json:"login"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	OnResponse      func(u *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates pending users. The confirmation email is sent
// before anything is written, a failed send leaves no user behind.
type RegisterUserHandler struct {
	repo         RepositoryManager
	mailer       Mailer
	publicURL    string
	logger       Logger
	activitySink ActivitySink
	timeout      time.Duration
}

func NewRegisterUserHandler(repo RepositoryManager, mailer Mailer, publicURL string) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:         repo,
		mailer:       mailer,
		publicURL:    strings.TrimRight(publicURL, "/"),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		timeout:      time.Second * 30,
	}
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.validate(ctx, event); err != nil {
		h.fail(ctx, event, err)
		return err
	}

	token, err := GenerateOpaqueToken()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification token")
	}

	if err := h.mailer.SendConfirmation(ctx, normalizeEmail(event.Email), h.VerificationLink(token)); err != nil {
		h.logger.Error("registration confirmation email failed", "email", event.Email, "error", err)
		h.fail(ctx, event, err)
		return ErrEmailSendFailed
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Email:        event.Email,
		Login:        event.Login,
		FullName:     event.FullName,
		PasswordHash: hash,
		Role:         DefaultRole,
		RegToken:     &token,
	}
	if id, err := UserID(event.Email); err == nil {
		user.ID = id
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().CreateTx(ctx, tx, user)
		return err
	})

	if err != nil {
		err = h.resolveConflict(ctx, event, err)
		h.fail(ctx, event, err)
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventRegistrationPending,
		Actor:     userActor(user),
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"email": user.Email,
			"login": user.Login,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

// validate runs the ordered registration checks, the first failure wins
func (h *RegisterUserHandler) validate(ctx context.Context, event RegisterUserMessage) error {
	if strings.TrimSpace(event.Email) == "" ||
		strings.TrimSpace(event.Login) == "" ||
		strings.TrimSpace(event.FullName) == "" ||
		event.Password == "" ||
		event.ConfirmPassword == "" {
		return ErrNotEnoughData
	}

	if err := ValidateRegistrationFields(strings.TrimSpace(event.Email), strings.TrimSpace(event.Login), event.FullName); err != nil {
		return err
	}

	taken, err := h.repo.Users().LoginExists(ctx, event.Login)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check login")
	}
	if taken {
		return ErrLoginTaken
	}

	taken, err = h.repo.Users().EmailExists(ctx, event.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
	}
	if taken {
		// a concurrent registration may have landed after the login check
		if again, lerr := h.repo.Users().LoginExists(ctx, event.Login); lerr == nil && again {
			return ErrLoginTaken
		}
		return ErrEmailTaken
	}

	if err := validation.Validate(event.ConfirmPassword, validation.By(ValidateStringEquals(event.Password))); err != nil {
		return ErrPasswordsDoNotMatch
	}

	if err := ValidatePassword(event.Password); err != nil {
		return err
	}

	return ValidatePasswordLength(event.Password)
}

// resolveConflict handles an insert that lost a race against a concurrent
// registration: it reports what the ordered checks report now.
func (h *RegisterUserHandler) resolveConflict(ctx context.Context, event RegisterUserMessage, err error) error {
	if !goerrors.IsCategory(err, goerrors.CategoryConflict) {
		return err
	}

	if taken, lerr := h.repo.Users().LoginExists(ctx, event.Login); lerr == nil && taken {
		return ErrLoginTaken
	}

	if taken, eerr := h.repo.Users().EmailExists(ctx, event.Email); eerr == nil && taken {
		return ErrEmailTaken
	}

	return err
}

// VerificationLink builds the link mailed to the user
func (h *RegisterUserHandler) VerificationLink(token string) string {
	return h.publicURL + "/verify?token=" + url.QueryEscape(token)
}

func (h *RegisterUserHandler) fail(ctx context.Context, event RegisterUserMessage, err error) {
	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventRegistrationFailure,
		Actor:     ActorRef{Type: "anonymous"},
		Metadata: map[string]any{
			"email": event.Email,
			"login": event.Login,
			"error": err.Error(),
		},
	})
}

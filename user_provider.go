package defects

import (
	"context"

	"github.com/goliatone/go-errors"
)

// UserFinder is a store we can use to retrieve users
type UserFinder interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
}

// UserProvider handles users
type UserProvider struct {
	store     UserFinder
	Validator func(*User) error
	logger    Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserFinder) *UserProvider {
	return &UserProvider{
		store:     store,
		logger:    defLogger{},
		Validator: defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity will find the user and compare the password. Unknown
// users and wrong passwords get the same error. The pending check runs
// only once the password matched.
func (u UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (*User, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.IsPending() {
		return nil, ErrEmailNotConfirmed
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return user, nil
}

func defaultValidator(u *User) error {
	if u.Role.IsValid() {
		return nil
	}
	return errors.New("user has an unknown or invalid role", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode("INVALID_ROLE").
		WithMetadata(map[string]any{"role": u.Role, "user_id": u.ID.String()})
}

package defects

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	LoginExists(ctx context.Context, login string) (bool, error)
	List(ctx context.Context) ([]*User, error)
	Confirm(ctx context.Context, token string) (*User, error)
	ConfirmTx(ctx context.Context, tx bun.IDB, token string) (*User, error)
	SetRole(ctx context.Context, id uuid.UUID, role UserRole) (*User, error)
}

type users struct {
	repo repository.Repository[*User]
	db   *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	return &users{
		repo: newModelRepository(db,
			func() *User { return &User{} },
			func(u *User) uuid.UUID {
				if u == nil {
					return uuid.Nil
				}
				return u.ID
			},
			func(u *User, id uuid.UUID) {
				if u != nil {
					u.ID = id
				}
			},
		),
		db: db,
	}
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

// userConstraints maps the index names sqlite and postgres report to
// the registration conflict errors, login first
var userConstraints = []struct {
	names []string
	err   error
}{
	{names: []string{"users_login_lower_idx", "users.login"}, err: ErrLoginTaken},
	{names: []string{"users_email_lower_idx", "users.email"}, err: ErrEmailTaken},
	// ids are derived from the email
	{names: []string{"users_pkey", "users.id"}, err: ErrEmailTaken},
}

// CreateTx inserts the user, unique violations are reported as the
// same conflict errors the registration checks return
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	prepareUserDefaults(record)

	user, err := a.repo.CreateTx(ctx, tx, record)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, userConflict(err)
		}
		return nil, err
	}
	return user, nil
}

func userConflict(err error) error {
	msg := err.Error()
	for _, c := range userConstraints {
		for _, name := range c.names {
			if strings.Contains(msg, name) {
				return c.err
			}
		}
	}
	return NewConflictError("user already exists").WithMetadata(map[string]any{
		"cause": msg,
	})
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := a.repo.GetByID(ctx, id.String())
	return user, notFound(err, "user", id.String())
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	user, err := a.repo.GetByIdentifierTx(ctx, tx, id.String())
	return user, notFound(err, "user", id.String())
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.findOne(ctx, "lower(?TableAlias.email) = ?", normalizeEmail(email))
}

func (a *users) GetByLogin(ctx context.Context, login string) (*User, error) {
	return a.findOne(ctx, "lower(?TableAlias.login) = ?", strings.ToLower(strings.TrimSpace(login)))
}

// GetByIdentifier treats identifiers containing "@" as an email and
// anything else as a login
func (a *users) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	if strings.Contains(identifier, "@") {
		return a.GetByEmail(ctx, identifier)
	}
	return a.GetByLogin(ctx, identifier)
}

func (a *users) EmailExists(ctx context.Context, email string) (bool, error) {
	return a.db.NewSelect().
		Model((*User)(nil)).
		Where("lower(?TableAlias.email) = ?", normalizeEmail(email)).
		Exists(ctx)
}

func (a *users) LoginExists(ctx context.Context, login string) (bool, error) {
	return a.db.NewSelect().
		Model((*User)(nil)).
		Where("lower(?TableAlias.login) = ?", strings.ToLower(strings.TrimSpace(login))).
		Exists(ctx)
}

func (a *users) List(ctx context.Context) ([]*User, error) {
	var records []*User
	err := a.db.NewSelect().
		Model(&records).
		Order("created_at ASC").
		Scan(ctx)
	return records, err
}

func (a *users) Confirm(ctx context.Context, token string) (*User, error) {
	var user *User
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = a.ConfirmTx(ctx, tx, token)
		return err
	})
	return user, err
}

// ConfirmTx clears the registration token. The update is conditional on
// the token so two concurrent confirmations can not both succeed.
func (a *users) ConfirmTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	if token == "" {
		return nil, NewNotFoundError("user")
	}

	user := &User{}
	err := tx.NewSelect().
		Model(user).
		Where("?TableAlias.reg_token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user", nil)
	}

	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("reg_token = NULL").
		Where("id = ?", user.ID).
		Where("reg_token = ?", token).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, NewNotFoundError("user")
	}

	user.RegToken = nil
	return user, nil
}

func (a *users) SetRole(ctx context.Context, id uuid.UUID, role UserRole) (*User, error) {
	if !role.IsValid() {
		return nil, NewValidationError("invalid role: " + string(role))
	}

	user, err := a.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Role = role
	if _, err := a.db.NewUpdate().
		Model(user).
		Column("role").
		WherePK().
		Exec(ctx); err != nil {
		return nil, err
	}

	return user, nil
}

func (a *users) findOne(ctx context.Context, where string, value any) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where(where, value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user", value)
	}
	return record, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = DefaultRole
	}

	record.Email = normalizeEmail(record.Email)
	record.Login = strings.TrimSpace(record.Login)
	record.FullName = strings.TrimSpace(record.FullName)

	if record.ID == uuid.Nil {
		if id, err := UserID(record.Email); err == nil {
			record.ID = id
		} else {
			record.ID = uuid.New()
		}
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
}

// UserID derives a stable user id from the normalized email. The hashid
// normalizer is off since it strips characters such as "." and "_"
// that distinguish addresses.
func UserID(email string) (uuid.UUID, error) {
	return hashid.NewUUID(normalizeEmail(email), hashid.WithNormalization(false))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

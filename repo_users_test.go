package defects_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	defects "github.com/goliatone/go-defects"
)

func TestUsersLookupIgnoresCase(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := createUser(t, repo, "Petrov", defects.RoleEngineer)

	byEmail, err := repo.Users().GetByEmail(ctx, " PETROV@example.com ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byLogin, err := repo.Users().GetByLogin(ctx, "petrov")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byLogin.ID)

	exists, err := repo.Users().LoginExists(ctx, "PETROV")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Users().EmailExists(ctx, "someone@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Users().GetByIdentifier(ctx, "ghost")
	assert.True(t, defects.IsNotFound(err))
}

func TestUsersCreateDefaults(t *testing.T) {
	repo := newTestRepo(t)

	user, err := repo.Users().Create(context.Background(), &defects.User{
		Email:        "  New.User@Example.com ",
		Login:        " new_user ",
		FullName:     "New User",
		PasswordHash: passwordHash(t),
	})
	require.NoError(t, err)

	assert.Equal(t, "new.user@example.com", user.Email)
	assert.Equal(t, "new_user", user.Login)
	assert.Equal(t, defects.DefaultRole, user.Role)
	assert.True(t, user.IsConfirmed())
}

func TestUserIDFromEmail(t *testing.T) {
	id, err := defects.UserID("alice@example.com")
	require.NoError(t, err)

	again, err := defects.UserID("  Alice@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	dotted, err := defects.UserID("a.b@example.com")
	require.NoError(t, err)
	plain, err := defects.UserID("ab@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, dotted, plain)

	user := createUser(t, newTestRepo(t), "alice", defects.RoleEngineer)
	assert.Equal(t, id, user.ID)
}

func TestUsersConfirmConsumesToken(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	pending := createPendingUser(t, repo, "pending", "reg-token")
	require.True(t, pending.IsPending())

	confirmed, err := repo.Users().Confirm(ctx, "reg-token")
	require.NoError(t, err)
	assert.True(t, confirmed.IsConfirmed())

	_, err = repo.Users().Confirm(ctx, "reg-token")
	assert.True(t, defects.IsNotFound(err))

	stored, err := repo.Users().GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RegToken)
}

func TestUsersCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	createUser(t, repo, "alice", defects.RoleEngineer)

	tests := []struct {
		name  string
		email string
		login string
		want  error
	}{
		{name: "same login", email: "other@example.com", login: "alice", want: defects.ErrLoginTaken},
		{name: "same login other case", email: "other@example.com", login: "ALICE", want: defects.ErrLoginTaken},
		{name: "same email", email: "alice@example.com", login: "other", want: defects.ErrEmailTaken},
		{name: "same email other case", email: "Alice@Example.com", login: "other", want: defects.ErrEmailTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Users().Create(ctx, &defects.User{
				Email:        tt.email,
				Login:        tt.login,
				FullName:     "Duplicate",
				PasswordHash: passwordHash(t),
			})
			assert.Equal(t, tt.want, err)
		})
	}

	users, err := repo.Users().List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUsersSetRole(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	user := createUser(t, repo, "observer", defects.RoleObserver)

	updated, err := repo.Users().SetRole(ctx, user.ID, defects.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, defects.RoleManager, updated.Role)

	stored, err := repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, defects.RoleManager, stored.Role)

	_, err = repo.Users().SetRole(ctx, user.ID, "root")
	assertErrorMessage(t, err, "invalid role: root")
}

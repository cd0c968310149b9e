package defects_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	defects "github.com/goliatone/go-defects"
)

func TestAccountVerification(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	pending := createPendingUser(t, repo, "pending", "tok-123")
	sink := &recordingSink{}

	handler := defects.NewAccountVerificationHandler(repo).
		WithLogger(nopLogger{}).
		WithActivitySink(sink)

	t.Run("missing token", func(t *testing.T) {
		err := handler.Execute(ctx, defects.AccountVerificationMessage{Token: " "})
		assert.ErrorIs(t, err, defects.ErrVerificationTokenMissing)
	})

	t.Run("unknown token", func(t *testing.T) {
		err := handler.Execute(ctx, defects.AccountVerificationMessage{Token: "nope"})
		assert.ErrorIs(t, err, defects.ErrVerificationTokenInvalid)
	})

	t.Run("confirms once", func(t *testing.T) {
		var confirmed *defects.User
		err := handler.Execute(ctx, defects.AccountVerificationMessage{
			Token:      "tok-123",
			OnResponse: func(u *defects.User) { confirmed = u },
		})
		require.NoError(t, err)
		require.NotNil(t, confirmed)
		assert.Equal(t, pending.ID, confirmed.ID)
		assert.True(t, confirmed.IsConfirmed())

		stored, err := repo.Users().GetByID(ctx, pending.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.RegToken)

		err = handler.Execute(ctx, defects.AccountVerificationMessage{Token: "tok-123"})
		assert.ErrorIs(t, err, defects.ErrVerificationTokenInvalid)

		assert.Contains(t, sink.Types(), defects.ActivityEventAccountConfirmed)
	})
}

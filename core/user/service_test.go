package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	testutil "github.com/trezcool/academia/tests"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewUserRepository(inmemdb.NewDB())
	svc := user.NewService(repo)

	usr, err := svc.Create(ctx, user.NewUser{
		Name:     "Jane",
		Username: "jane",
		Email:    "jane@test.cd",
		Password: "Zq7#vT9!mw",
		Roles:    []string{user.RoleTeacher},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.Active())
	assert.NoError(t, usr.CheckPassword("Zq7#vT9!mw"))

	t.Run("uniqueness", func(t *testing.T) {
		err := svc.CheckUniqueness(ctx, "jane", "")
		require.True(t, core.IsValidationError(err))
		vErr := errors.Cause(err).(*core.ValidationError)
		assert.Equal(t, []core.FieldError{{Field: "username", Error: user.ErrUsernameExists.Error()}}, vErr.Fields)

		err = svc.CheckUniqueness(ctx, "", "jane@test.cd")
		require.True(t, core.IsValidationError(err))
		vErr = errors.Cause(err).(*core.ValidationError)
		assert.Equal(t, "email", vErr.Fields[0].Field)

		assert.NoError(t, svc.CheckUniqueness(ctx, "jane", "jane@test.cd", usr), "the user itself is excluded")
	})

	t.Run("lookup", func(t *testing.T) {
		got, err := svc.GetByUsernameOrEmail(ctx, " JANE@test.cd ")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, got.ID)

		_, err = svc.GetByID(ctx, "lol")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("last login", func(t *testing.T) {
		got, err := svc.SetLastLogin(ctx, usr)
		require.NoError(t, err)
		assert.False(t, got.LastLogin.IsZero())
	})

	t.Run("reset password", func(t *testing.T) {
		_, err := svc.ResetPassword(ctx, "lol", "new-pwd")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))

		_, err = svc.ResetPassword(ctx, "Jane", "new-pwd")
		require.NoError(t, err)
		got, err := svc.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.NoError(t, got.CheckPassword("new-pwd"))
	})

	t.Run("fixtures", func(t *testing.T) {
		other := testutil.CreateUser(t, repo, "Bob", "bobby", "bob@test.cd", "", user.StudentRoles, false)
		got, err := svc.GetByUsernameOrEmail(ctx, "bobby")
		require.NoError(t, err)
		assert.False(t, got.Active())
		assert.Equal(t, other.ID, got.ID)
	})
}

package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dshills/mecsis-mcp/internal/storage"
	"github.com/dshills/mecsis-mcp/pkg/types"
)

func setup(t *testing.T) (*Authenticator, *storage.SQLiteStorage) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, WithCost(bcrypt.MinCost)), store
}

func TestCreateAndAuthenticate(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()

	user, err := a.CreateUser(ctx, "  admin ", "", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.Equal(t, "admin", user.DisplayName)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	got, err := a.Authenticate(ctx, "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = a.Authenticate(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)

	_, err = a.Authenticate(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)
}

func TestCreateUser_Validation(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()

	_, err := a.CreateUser(ctx, " ", "x", "pw")
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = a.CreateUser(ctx, "bob", "", "")
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = a.CreateUser(ctx, "bob", "", strings.Repeat("x", 100))
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = a.CreateUser(ctx, "bob", "", "pw")
	require.NoError(t, err)
	_, err = a.CreateUser(ctx, "bob", "", "pw")
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestUpdatePassword(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()

	user, err := a.CreateUser(ctx, "ops", "Ops", "old")
	require.NoError(t, err)

	require.NoError(t, a.UpdatePassword(ctx, user.ID, "new"))

	_, err = a.Authenticate(ctx, "ops", "old")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)
	_, err = a.Authenticate(ctx, "ops", "new")
	assert.NoError(t, err)

	assert.ErrorIs(t, a.UpdatePassword(ctx, 999, "x"), types.ErrNotFound)
}

func TestInactiveUserCannotAuthenticate(t *testing.T) {
	a, store := setup(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(ctx, &types.User{Username: "former", PasswordHash: string(hash), IsActive: false}))

	_, err = a.Authenticate(ctx, "former", "pw")
	assert.ErrorIs(t, err, types.ErrInvalidCredentials)
}

func TestWithCost(t *testing.T) {
	assert.Equal(t, DefaultCost, New(nil, WithCost(99)).cost)
	assert.Equal(t, bcrypt.MinCost, New(nil, WithCost(bcrypt.MinCost)).cost)
}

func TestUpdateProfile(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()

	user, err := a.CreateUser(ctx, "admin", "Admin", "s3cret")
	require.NoError(t, err)
	_, err = a.CreateUser(ctx, "bob", "", "pw")
	require.NoError(t, err)

	t.Run("rename keeps password when none given", func(t *testing.T) {
		updated, err := a.UpdateProfile(ctx, user.ID, " chief ", "  ", "")
		require.NoError(t, err)
		assert.Equal(t, "chief", updated.Username)
		assert.Equal(t, "chief", updated.DisplayName)

		_, err = a.Authenticate(ctx, "chief", "s3cret")
		assert.NoError(t, err)
		_, err = a.Authenticate(ctx, "admin", "s3cret")
		assert.ErrorIs(t, err, types.ErrInvalidCredentials)
	})

	t.Run("new password is rehashed", func(t *testing.T) {
		updated, err := a.UpdateProfile(ctx, user.ID, "chief", "Shop Chief", "n3w")
		require.NoError(t, err)
		assert.Equal(t, "Shop Chief", updated.DisplayName)

		_, err = a.Authenticate(ctx, "chief", "n3w")
		assert.NoError(t, err)
		_, err = a.Authenticate(ctx, "chief", "s3cret")
		assert.ErrorIs(t, err, types.ErrInvalidCredentials)
	})

	t.Run("taken username conflicts", func(t *testing.T) {
		_, err := a.UpdateProfile(ctx, user.ID, "bob", "", "")
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("empty username is rejected", func(t *testing.T) {
		_, err := a.UpdateProfile(ctx, user.ID, "   ", "x", "")
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := a.UpdateProfile(ctx, 999, "ghost", "", "")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

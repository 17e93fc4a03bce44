package auth_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptomonitor/tracker/internal/auth"
	"github.com/cryptomonitor/tracker/internal/store"
)

func newUsers(t *testing.T) *auth.Users {
	t.Helper()

	db, err := store.Open(store.InMemory, store.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return auth.NewUsers(db)
}

func TestUsers_Register(t *testing.T) {
	users := newUsers(t)
	ctx := context.Background()

	user, err := users.Register(ctx, "satoshi", "correcthorsebattery")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "satoshi", user.Username)
	assert.NotEqual(t, []byte("correcthorsebattery"), user.PasswordHash)

	got, err := users.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, got.Username)
}

func TestUsers_RegisterValidation(t *testing.T) {
	users := newUsers(t)
	ctx := context.Background()

	_, err := users.Register(ctx, "", "correcthorsebattery")
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrValidation))

	_, err = users.Register(ctx, "satoshi", "short")
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrValidation))
	assert.Contains(t, err.Error(), "at least 8 characters")
}

func TestUsers_RegisterDuplicateUsername(t *testing.T) {
	users := newUsers(t)
	ctx := context.Background()

	_, err := users.Register(ctx, "satoshi", "correcthorsebattery")
	require.NoError(t, err)

	_, err = users.Register(ctx, "satoshi", "anotherpassword")
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrUsernameTaken))
}

func TestUsers_Authenticate(t *testing.T) {
	users := newUsers(t)
	ctx := context.Background()

	registered, err := users.Register(ctx, "satoshi", "correcthorsebattery")
	require.NoError(t, err)

	user, err := users.Authenticate(ctx, "satoshi", "correcthorsebattery")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = users.Authenticate(ctx, "satoshi", "wrongpassword")
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))

	_, err = users.Authenticate(ctx, "nobody", "correcthorsebattery")
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))
}

package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redstring/pkg/database"
	"redstring/pkg/models"
)

func TestCreateAndVerify(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	u, err := CreateUser(ctx, db, "reader", "reader123", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleReader, u.Role)
	assert.NotEqual(t, "reader123", u.PasswordHash)

	got, err := VerifyLogin(ctx, db, "reader", "reader123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = VerifyLogin(ctx, db, "reader", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = VerifyLogin(ctx, db, "nobody", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = CreateUser(ctx, db, "reader", "again", "")
	assert.Error(t, err, "usernames are unique")
}

func TestExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	u, err := CreateUser(ctx, db, "a", "pw", models.RoleAdmin)
	require.NoError(t, err)

	ok, err := Exists(ctx, db, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, Delete(ctx, db, u.ID))

	ok, err = Exists(ctx, db, u.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = GetByID(ctx, db, u.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	first, created, err := EnsureUser(ctx, db, "admin", "admin123", models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := EnsureUser(ctx, db, "admin", "other", models.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	users, err := List(ctx, db)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

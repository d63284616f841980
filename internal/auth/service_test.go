package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rooms-songpig/songpig-rooms-sub000/internal/testutil"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/apperr"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/jwt"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

var testSecret = []byte("test-secret")

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.NewDB(t), nil, testSecret, testutil.Logger())
}

func TestRegister(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  frank  ", "correcthorse", "Frank", "makes beats", models.RoleArtist)
	require.NoError(t, err)
	assert.Equal(t, "frank", user.Username)
	assert.Equal(t, models.RoleArtist, user.Role)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.NotEqual(t, "correcthorse", user.PasswordHash)

	_, err = svc.Register(ctx, "frank", "correcthorse", "", "", models.RoleListener)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Register(ctx, "ab", "correcthorse", "", "", models.RoleArtist)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Register(ctx, "short-pass", "hunter2", "", "", models.RoleArtist)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// Nobody self-registers as admin.
	_, err = svc.Register(ctx, "wannabe", "correcthorse", "", "", models.RoleAdmin)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "frank", "correcthorse", "Frank", "", models.RoleArtist)
	require.NoError(t, err)

	token, loggedIn, err := svc.Login(ctx, "frank", "correcthorse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := jwt.ValidateToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, models.RoleArtist, claims.Role)

	_, _, err = svc.Login(ctx, "frank", "wrongpassword")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, _, err = svc.Login(ctx, "nobody", "correcthorse")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "frank", "correcthorse", "", "", models.RoleArtist)
	require.NoError(t, err)

	require.NoError(t, svc.SetUserStatus(ctx, models.RoleAdmin, user.ID.String(), models.UserStatusDisabled))
	_, _, err = svc.Login(ctx, "frank", "correcthorse")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// Reactivation is reversible.
	require.NoError(t, svc.SetUserStatus(ctx, models.RoleAdmin, user.ID.String(), models.UserStatusActive))
	_, _, err = svc.Login(ctx, "frank", "correcthorse")
	assert.NoError(t, err)
}

func TestSetUserStatusPermissions(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "frank", "correcthorse", "", "", models.RoleArtist)
	require.NoError(t, err)

	err = svc.SetUserStatus(ctx, models.RoleArtist, user.ID.String(), models.UserStatusDisabled)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	err = svc.SetUserStatus(ctx, models.RoleAdmin, user.ID.String(), "suspended")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.Logger()

	require.NoError(t, SeedAdmin(db, "admin", "changeme-now", log))
	require.NoError(t, SeedAdmin(db, "admin", "changeme-now", log))

	admin, err := db.GetUserByUsername("admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	err = SeedAdmin(db, "", "", log)
	assert.Error(t, err)
}

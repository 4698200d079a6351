package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"streamhub/internal/apperr"
	"streamhub/internal/testutil"
)

func newRepo(t *testing.T) *Repo {
	repo := NewRepo(testutil.DB(t))
	repo.Cost = bcrypt.MinCost
	return repo
}

func TestUserCreateAndAuthenticate(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, NewUser{Email: " Ana@Example.com ", Username: "ana", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	got, err := repo.Authenticate(ctx, "ANA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.Authenticate(ctx, "ana@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = repo.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserValidationAndConflicts(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, NewUser{Email: "not-an-email", Username: "ab", Password: "short"})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 3)
	assert.Equal(t, "email", ve.Fields[0].Field)
	assert.Equal(t, "username", ve.Fields[1].Field)
	assert.Equal(t, "password", ve.Fields[2].Field)

	_, err = repo.Create(ctx, NewUser{Email: "a@example.com", Username: "alpha", Password: "password1"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, NewUser{Email: "A@example.com", Username: "beta", Password: "password1"})
	var ce *apperr.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "email already exists", ce.Reason)

	_, err = repo.Create(ctx, NewUser{Email: "b@example.com", Username: "alpha", Password: "password1"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "username already exists", ce.Reason)
}

func TestUserPasswordChangeBumpsTokenVersion(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, NewUser{Email: "c@example.com", Username: "carol", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, 0, u.TokenVersion)

	name := "caroline"
	u, err = repo.Update(ctx, u.ID, Patch{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, 0, u.TokenVersion)

	pw := "password2"
	_, err = repo.Update(ctx, u.ID, Patch{Password: &pw})
	require.NoError(t, err)

	v, err := repo.TokenVersion(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = repo.Authenticate(ctx, "c@example.com", "password2")
	require.NoError(t, err)

	require.NoError(t, repo.BumpTokenVersion(ctx, u.ID))
	v, err = repo.TokenVersion(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	require.NoError(t, repo.Remove(ctx, u.ID))
	_, err = repo.FindOne(ctx, u.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, repo.BumpTokenVersion(ctx, u.ID), apperr.ErrNotFound)
}

package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/internal/apperr"
	"streamhub/internal/testutil"
	"streamhub/pkg/models"
)

func basic() models.Plan {
	return models.Plan{
		Name:        "Basic",
		PriceCents:  799,
		Currency:    "usd",
		MaxProfiles: 1,
		MaxQuality:  "sd",
		IsActive:    true,
	}
}

func TestPlanRepo(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	b, err := repo.Create(ctx, basic())
	require.NoError(t, err)
	assert.Equal(t, "USD", b.Currency)
	assert.Equal(t, models.QualitySD, b.MaxQuality)

	premium := basic()
	premium.Name = "Premium"
	premium.PriceCents = 1999
	premium.MaxProfiles = 4
	premium.MaxQuality = models.QualityUHD
	premium.IsActive = false
	_, err = repo.Create(ctx, premium)
	require.NoError(t, err)

	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Basic", active[0].Name)

	byName, err := repo.FindByName(ctx, "PREMIUM")
	require.NoError(t, err)
	assert.False(t, byName.IsActive)

	on := true
	updated, err := repo.Update(ctx, byName.ID, Patch{IsActive: &on})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	all, err := repo.FindAll(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "Basic", all[0].Name, "cheapest first")

	_, err = repo.Create(ctx, basic())
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestPlanValidation(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRepo(db)

	_, err := repo.Create(context.Background(), models.Plan{
		Name:        "Odd",
		PriceCents:  -1,
		Currency:    "XXXX",
		MaxProfiles: 0,
		MaxQuality:  "8K",
	})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	fields := map[string]bool{}
	for _, f := range ve.Fields {
		fields[f.Field] = true
	}
	assert.Equal(t, map[string]bool{
		"priceCents": true, "currency": true, "maxProfiles": true, "maxQuality": true,
	}, fields)
	assert.Equal(t, 0, testutil.Count(t, db, "plans"))
}

func TestPlanRemoveWhileReferenced(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	p, err := repo.Create(ctx, basic())
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO users (email, username, password_hash) VALUES ('a@b.c', 'a', 'x')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO subscriptions (user_id, plan_id, status, started_at) VALUES (1, ?, 'active', CURRENT_TIMESTAMP)`, p.ID)
	require.NoError(t, err)

	err = repo.Remove(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = db.Exec(`DELETE FROM subscriptions`)
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, p.ID))
	assert.ErrorIs(t, repo.Remove(ctx, p.ID), apperr.ErrNotFound)
}

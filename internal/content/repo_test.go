package content

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/internal/apperr"
	"streamhub/internal/genre"
	"streamhub/internal/testutil"
	"streamhub/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func TestCreateRejectsUnknownCategory(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRepo(db)

	_, err := repo.Create(context.Background(), models.Content{
		Title:    "Broken",
		Category: "INVALID",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "category", ve.Fields[0].Field)
	assert.Equal(t, 0, testutil.Count(t, db, "content"))
}

func TestCreateCollectsEveryViolation(t *testing.T) {
	repo := NewRepo(testutil.DB(t))

	_, err := repo.Create(context.Background(), models.Content{
		Category:  models.CategoryMovie,
		Rating:    ptr(11.0),
		PosterURL: "not a url",
	})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	fields := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"title", "rating", "posterUrl"}, fields)
}

func TestContentLifecycle(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	genres := genre.NewRepo(db)
	repo := NewRepo(db)

	action, err := genres.Create(ctx, models.Genre{Name: "Action"})
	require.NoError(t, err)
	drama, err := genres.Create(ctx, models.Genre{Name: "Drama"})
	require.NoError(t, err)

	released := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	created, err := repo.Create(ctx, models.Content{
		Title:          "Night Run",
		Category:       "film",
		MaturityRating: "pg13",
		ReleaseDate:    &released,
		Rating:         ptr(8.1),
		Tags:           []string{"Action", " action ", "Heist"},
		GenreIDs:       []int64{action.ID, action.ID},
		PosterURL:      "https://img.example/poster.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryMovie, created.Category)
	assert.Equal(t, models.MaturityPG13, created.MaturityRating)
	assert.Equal(t, []string{"Action", "Heist"}, created.Tags)
	assert.Equal(t, []int64{action.ID}, created.GenreIDs)
	require.NotNil(t, created.ReleaseDate)
	assert.True(t, released.Equal(*created.ReleaseDate))

	expanded, err := repo.FindOne(ctx, created.ID, true)
	require.NoError(t, err)
	require.Len(t, expanded.Genres, 1)
	assert.Equal(t, "Action", expanded.Genres[0].Name)

	updated, err := repo.Update(ctx, created.ID, Patch{
		GenreIDs:  &[]int64{drama.ID},
		ViewCount: ptr(int64(42)),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{drama.ID}, updated.GenreIDs)
	assert.Equal(t, int64(42), updated.ViewCount)
	assert.Equal(t, "Night Run", updated.Title)

	byGenre, err := repo.FindByGenre(ctx, drama.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, byGenre, 1)
	assert.Equal(t, created.ID, byGenre[0].ID)

	byGenreName, err := repo.FindAll(ctx, ListQuery{Genre: "drama"})
	require.NoError(t, err)
	assert.Len(t, byGenreName, 1)

	movies, err := repo.FindByCategory(ctx, "movies", 10, 0)
	require.NoError(t, err)
	assert.Len(t, movies, 1)

	series, err := repo.FindByCategory(ctx, "series", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, series)

	_, err = repo.FindByCategory(ctx, "podcast", 10, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, repo.Remove(ctx, created.ID))
	_, err = repo.FindOne(ctx, created.ID, false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 0, testutil.Count(t, db, "content_genres"))
}

func TestCreateWithUnknownGenreWritesNothing(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRepo(db)

	_, err := repo.Create(context.Background(), models.Content{
		Title:    "Orphan",
		Category: models.CategorySeries,
		GenreIDs: []int64{404},
	})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "genreIds", ve.Fields[0].Field)
	assert.Equal(t, 0, testutil.Count(t, db, "content"))
}

func TestUpdateInvalidLeavesRowUntouched(t *testing.T) {
	repo := NewRepo(testutil.DB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, models.Content{Title: "Keep", Category: models.CategoryMusic})
	require.NoError(t, err)

	_, err = repo.Update(ctx, created.ID, Patch{Category: ptr("INVALID")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := repo.FindOne(ctx, created.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryMusic, got.Category)

	_, err = repo.Update(ctx, 999, Patch{Title: ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, repo.Remove(ctx, 999), apperr.ErrNotFound)
}

func TestUpsertExternal(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	item := models.ContentItem{
		ID:        "tmdb-1",
		Title:     "First Cut",
		Category:  models.CategoryMovie,
		Rating:    ptr(6.5),
		ViewCount: 10,
	}
	first, created, err := repo.UpsertExternal(ctx, item)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "tmdb-1", first.ExternalID)

	item.Title = "Director's Cut"
	item.ViewCount = 0
	second, created, err := repo.UpsertExternal(ctx, item)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Director's Cut", second.Title)
	assert.Equal(t, int64(10), second.ViewCount, "zero counters keep stored values")
	assert.Equal(t, 1, testutil.Count(t, db, "content"))

	byExt, err := repo.FindByExternalID(ctx, "tmdb-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byExt.ID)

	_, err = repo.FindByExternalID(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = repo.UpsertExternal(ctx, models.ContentItem{ID: "x", Title: "No category"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDuplicateExternalIDConflicts(t *testing.T) {
	repo := NewRepo(testutil.DB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, models.Content{ExternalID: "dup", Title: "A", Category: models.CategoryMovie})
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.Content{ExternalID: "dup", Title: "B", Category: models.CategoryMovie})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestItemRoundTrip(t *testing.T) {
	c := models.Content{
		ID:       7,
		Title:    "Native",
		Category: models.CategoryDocumentary,
		Tags:     []string{"Nature"},
		Genres:   []models.Genre{{ID: 1, Name: "Family"}},
	}
	it := c.Item()
	assert.Equal(t, "catalog:7", it.ID)
	assert.Equal(t, []string{"Nature", "Family"}, it.Tags)

	c.ExternalID = "ext-7"
	assert.Equal(t, "ext-7", c.Item().ID)
}

func TestFindOneSurfacesCorruptTags(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	c, err := repo.Create(ctx, models.Content{Title: "Tagged", Category: models.CategoryMovie, Tags: []string{"noir"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"noir"}, c.Tags)

	_, err = db.Exec(`UPDATE content SET tags = 'noir, heist' WHERE id = ?`, c.ID)
	require.NoError(t, err)

	_, err = repo.FindOne(ctx, c.ID, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode tags")
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
}

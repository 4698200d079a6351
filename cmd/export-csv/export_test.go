package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/internal/content"
	"streamhub/internal/discovery"
	"streamhub/internal/genre"
	"streamhub/internal/mirror"
	"streamhub/internal/testutil"
	"streamhub/pkg/models"
)

func TestExportContent(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := content.NewRepo(db)

	g, err := genre.NewRepo(db).Create(ctx, models.Genre{Name: "Drama"})
	require.NoError(t, err)

	rating := 8.1
	_, err = repo.Create(ctx, models.Content{
		Title:      "Zodiac",
		Category:   models.CategoryMovie,
		Rating:     &rating,
		Tags:       []string{"crime", "mystery"},
		GenreIDs:   []int64{g.ID},
		IsPremium:  true,
		ExternalID: "tt0443706",
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.Content{Title: "Alien", Category: models.CategorySeries})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := exportContent(ctx, repo, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "Alien", rows[1][2])
	assert.Equal(t, "Zodiac", rows[2][2])
	assert.Equal(t, "tt0443706", rows[2][1])
	assert.Equal(t, "8.1", rows[2][7])
	assert.Equal(t, "Drama", rows[2][8])
	assert.Equal(t, "crime|mystery", rows[2][9])
	assert.Equal(t, "true", rows[2][10])
}

func TestExportMirrorFeedsAdapter(t *testing.T) {
	ctx := context.Background()
	repo := content.NewRepo(testutil.DB(t))
	_, err := repo.Create(ctx, models.Content{Title: "Heat", Category: models.CategoryMovie, ExternalID: "tt0113277"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, models.Content{Title: "Local", Category: models.CategoryMusic})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := exportMirror(ctx, repo, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	m, err := mirror.New(buf.Bytes(), mirror.Options{PageSize: 10}, nil)
	require.NoError(t, err)
	records := m.Page(1)
	require.Len(t, records, 2)

	item, err := discovery.NewAdapter().Adapt(records[0])
	require.NoError(t, err)
	assert.Equal(t, "tt0113277", item.ID)
	assert.Equal(t, models.CategoryMovie, item.Category)
}

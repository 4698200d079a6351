package discovery

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/pkg/models"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func rated(id string, r float64) models.ContentItem {
	return models.ContentItem{ID: id, Title: id, Rating: &r}
}

func released(id string, d time.Time) models.ContentItem {
	return models.ContentItem{ID: id, Title: id, ReleaseDate: &d}
}

func TestCategorizeEmitsEveryBucket(t *testing.T) {
	out := NewCategorizer().Categorize(nil, Options{Now: fixedNow})

	require.Len(t, out.Order, 3+len(GenreLabels)+2)
	assert.Equal(t, BucketPopular, out.Order[0])
	assert.Equal(t, BucketMyList, out.Order[len(out.Order)-1])
	for _, name := range out.Order {
		b, ok := out.Buckets[name]
		assert.True(t, ok, name)
		assert.NotNil(t, b, name)
		assert.Empty(t, b, name)
	}
}

func TestHighRatedThreshold(t *testing.T) {
	items := []models.ContentItem{
		rated("edge", 7.5),
		rated("below", 7.49),
		rated("top", 9.1),
		{ID: "unrated", Title: "unrated"},
	}
	out := NewCategorizer().Categorize(items, Options{Now: fixedNow})
	assert.Equal(t, []string{"top", "edge"}, out.IDs(BucketHighRated))
}

func TestPopularOrderAndTies(t *testing.T) {
	items := []models.ContentItem{
		{ID: "c", ViewCount: 10},
		{ID: "a", ViewCount: 10},
		{ID: "b", ViewCount: 99},
		{ID: "d"},
	}
	out := NewCategorizer().Categorize(items, Options{Now: fixedNow})
	assert.Equal(t, []string{"b", "a", "c", "d"}, out.IDs(BucketPopular))
}

func TestBucketsAreCapped(t *testing.T) {
	var items []models.ContentItem
	for i := 0; i < 30; i++ {
		items = append(items, models.ContentItem{ID: string(rune('A' + i)), ViewCount: int64(i), IsFeatured: true})
	}
	out := NewCategorizer().Categorize(items, Options{Now: fixedNow})
	assert.Len(t, out.Buckets[BucketPopular], 20)
	assert.Len(t, out.Buckets[BucketFeatured], 20)
	assert.Equal(t, items[29].ID, out.Buckets[BucketPopular][0].ID)
}

func TestNewReleasesWindow(t *testing.T) {
	items := []models.ContentItem{
		released("today", fixedNow),
		released("recent", fixedNow.AddDate(0, 0, -10)),
		released("edge", fixedNow.Add(-90*24*time.Hour)),
		released("old", fixedNow.AddDate(0, 0, -91)),
		released("future", fixedNow.AddDate(0, 0, 1)),
		{ID: "undated"},
	}
	out := NewCategorizer().Categorize(items, Options{Now: fixedNow})
	assert.Equal(t, []string{"today", "recent", "edge"}, out.IDs(BucketNewReleases))
}

func TestGenreBucketsAndMyList(t *testing.T) {
	items := []models.ContentItem{
		{ID: "1", Tags: []string{"Comedy", "Drama"}},
		{ID: "2", Tags: []string{"action"}},
		{ID: "3", Tags: []string{"SCI-FI"}},
	}
	out := NewCategorizer().Categorize(items, Options{Now: fixedNow, SavedIDs: []string{"3", "missing", "1", "3"}})

	assert.Equal(t, []string{"1"}, out.IDs(GenreBucket("comedy")))
	assert.Equal(t, []string{"1"}, out.IDs(GenreBucket("drama")))
	assert.Equal(t, []string{"2"}, out.IDs(GenreBucket("action")))
	assert.Equal(t, []string{"3"}, out.IDs(GenreBucket("sci-fi")))
	assert.Empty(t, out.IDs(GenreBucket("horror")))
	assert.Equal(t, []string{"3", "1"}, out.IDs(BucketMyList))
}

func TestCategorizeIsDeterministic(t *testing.T) {
	var items []models.ContentItem
	for i := 0; i < 40; i++ {
		r := float64(i%11) * 0.9
		d := fixedNow.AddDate(0, 0, -(i * 5))
		items = append(items, models.ContentItem{
			ID:          string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Rating:      &r,
			ReleaseDate: &d,
			ViewCount:   int64(i % 4),
			IsFeatured:  i%3 == 0,
			Tags:        []string{GenreLabels[i%len(GenreLabels)]},
		})
	}
	c := NewCategorizer()
	want := c.Categorize(items, Options{Now: fixedNow})

	shuffled := append([]models.ContentItem(nil), items...)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 5; i++ {
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := c.Categorize(shuffled, Options{Now: fixedNow})
		assert.Equal(t, want, got)
	}
}

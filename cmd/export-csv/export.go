package main

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"streamhub/internal/content"
	"streamhub/pkg/models"
)

const exportPageSize = 100

var header = []string{
	"id", "external_id", "title", "category", "maturity_rating", "release_date",
	"duration_minutes", "rating", "genres", "tags", "is_premium", "is_featured", "view_count",
}

// eachContent walks the whole catalog, ordered by title.
func eachContent(ctx context.Context, repo *content.Repo, fn func(models.Content) error) (int, error) {
	n := 0
	for offset := 0; ; offset += exportPageSize {
		rows, err := repo.FindAll(ctx, content.ListQuery{Expand: true, Limit: exportPageSize, Offset: offset})
		if err != nil {
			return n, err
		}
		for _, c := range rows {
			if err := fn(c); err != nil {
				return n, err
			}
			n++
		}
		if len(rows) < exportPageSize {
			return n, nil
		}
	}
}

// exportContent writes every catalog row as CSV and returns how many rows
// were written.
func exportContent(ctx context.Context, repo *content.Repo, out io.Writer) (int, error) {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return 0, err
	}
	n, err := eachContent(ctx, repo, func(c models.Content) error {
		return w.Write(record(c))
	})
	if err != nil {
		return n, err
	}
	w.Flush()
	return n, w.Error()
}

// exportMirror writes the catalog as a JSON array of normalized items, the
// fixture format mirror-server reads.
func exportMirror(ctx context.Context, repo *content.Repo, out io.Writer) (int, error) {
	items := make([]models.ContentItem, 0)
	n, err := eachContent(ctx, repo, func(c models.Content) error {
		items = append(items, c.Item())
		return nil
	})
	if err != nil {
		return n, err
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return n, err
	}
	_, err = out.Write(append(b, '\n'))
	return n, err
}

func record(c models.Content) []string {
	genres := make([]string, 0, len(c.Genres))
	for _, g := range c.Genres {
		genres = append(genres, g.Name)
	}

	release := ""
	if c.ReleaseDate != nil {
		release = c.ReleaseDate.Format("2006-01-02")
	}
	duration := ""
	if c.DurationMinutes != nil {
		duration = strconv.Itoa(*c.DurationMinutes)
	}
	rating := ""
	if c.Rating != nil {
		rating = strconv.FormatFloat(*c.Rating, 'f', -1, 64)
	}

	return []string{
		strconv.FormatInt(c.ID, 10),
		c.ExternalID,
		c.Title,
		string(c.Category),
		string(c.MaturityRating),
		release,
		duration,
		rating,
		strings.Join(genres, "|"),
		strings.Join(c.Tags, "|"),
		strconv.FormatBool(c.IsPremium),
		strconv.FormatBool(c.IsFeatured),
		strconv.FormatInt(c.ViewCount, 10),
	}
}

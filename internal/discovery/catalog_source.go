package discovery

import (
	"context"
	"encoding/json"

	gojson "github.com/goccy/go-json"

	"streamhub/internal/apperr"
	"streamhub/internal/content"
	"streamhub/pkg/models"
)

// CatalogLister is the slice of content.Repo the catalog source needs.
type CatalogLister interface {
	FindAll(ctx context.Context, q content.ListQuery) ([]models.Content, error)
}

// CatalogSource serves our own catalog as pages, so discovery still has
// something to show when the upstream is down.
type CatalogSource struct {
	Repo     CatalogLister
	PageSize int
}

func NewCatalogSource(repo CatalogLister) *CatalogSource {
	return &CatalogSource{Repo: repo, PageSize: 50}
}

func (s *CatalogSource) Name() string { return "catalog" }

func (s *CatalogSource) FetchPage(ctx context.Context, page int) Page {
	out := Page{Index: page}
	if page <= 0 {
		return out
	}
	size := s.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}

	rows, err := s.Repo.FindAll(ctx, content.ListQuery{
		Expand: true,
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		out.Err = &apperr.UpstreamUnavailableError{Source: s.Name(), Page: page, Err: err}
		return out
	}

	out.Records = make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		raw, err := gojson.Marshal(row.Item())
		if err != nil {
			continue
		}
		out.Records = append(out.Records, raw)
	}
	return out
}

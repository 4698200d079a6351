package discovery

import (
	"context"
	"errors"
	"time"

	"streamhub/internal/apperr"
	"streamhub/pkg/logger"
	"streamhub/pkg/models"
)

// Viewer is who the feed is built for. The zero Viewer has no maturity cap,
// sees premium titles and has nothing saved.
type Viewer struct {
	ProfileID      int64
	MaxMaturity    models.MaturityRating
	IncludePremium bool
	SavedIDs       []string
}

// Anonymous is the viewer used when no profile is given.
func Anonymous(saved []string) Viewer {
	return Viewer{IncludePremium: true, SavedIDs: saved}
}

// Allows reports whether the viewer may see it.
func (v Viewer) Allows(it models.ContentItem) bool {
	if it.IsPremium && !v.IncludePremium {
		return false
	}
	return v.MaxMaturity.Allows(it.Maturity)
}

type Feed struct {
	Source           string                          `json:"source"`
	Total            int                             `json:"total"`
	Hidden           int                             `json:"hidden"` // filtered out for the viewer
	FailedPages      []int                           `json:"failedPages"`
	MalformedRecords int                             `json:"malformedRecords"`
	Order            []string                        `json:"order"`
	Buckets          map[string][]models.ContentItem `json:"buckets"`
}

// Upserter is the slice of content.Repo that Import writes through.
type Upserter interface {
	UpsertExternal(ctx context.Context, item models.ContentItem) (*models.Content, bool, error)
}

type Service struct {
	Aggregator  *Aggregator
	Categorizer *Categorizer
	Catalog     Upserter
	Now         func() time.Time

	log *logger.Logger
}

func NewService(agg *Aggregator, catalog Upserter, log *logger.Logger) *Service {
	return &Service{
		Aggregator:  agg,
		Categorizer: NewCategorizer(),
		Catalog:     catalog,
		Now:         time.Now,
		log:         logger.OrNop(log).With("component", "discovery"),
	}
}

// Discover aggregates pages, drops what the viewer may not see and sorts the
// rest into buckets.
func (s *Service) Discover(ctx context.Context, pages []int, viewer Viewer) Feed {
	res := s.Aggregator.Aggregate(ctx, pages)

	visible := make([]models.ContentItem, 0, len(res.Items))
	for _, it := range res.Items {
		if viewer.Allows(it) {
			visible = append(visible, it)
		}
	}

	cat := s.Categorizer.Categorize(visible, Options{Now: s.Now(), SavedIDs: viewer.SavedIDs})
	s.log.Debug("feed built",
		"profile_id", viewer.ProfileID,
		"source", res.Source,
		"items", len(visible),
		"hidden", len(res.Items)-len(visible),
		"failed_pages", res.FailedPages,
	)

	failed := res.FailedPages
	if failed == nil {
		failed = []int{}
	}
	return Feed{
		Source:           res.Source,
		Total:            len(visible),
		Hidden:           len(res.Items) - len(visible),
		FailedPages:      failed,
		MalformedRecords: res.MalformedRecords,
		Order:            cat.Order,
		Buckets:          cat.Buckets,
	}
}

type ImportReport struct {
	Source           string `json:"source"`
	Created          int    `json:"created"`
	Updated          int    `json:"updated"`
	Skipped          int    `json:"skipped"`
	FailedPages      []int  `json:"failedPages"`
	MalformedRecords int    `json:"malformedRecords"`
}

// Import copies the primary source's pages into the catalog. Fallbacks are
// never used here: the catalog must not import itself. Items the catalog
// rejects are skipped; only storage failures abort the import.
func (s *Service) Import(ctx context.Context, pages []int) (ImportReport, error) {
	primaryOnly := *s.Aggregator
	primaryOnly.Fallbacks = nil
	res := primaryOnly.Aggregate(ctx, pages)

	report := ImportReport{
		Source:           res.Source,
		FailedPages:      res.FailedPages,
		MalformedRecords: res.MalformedRecords,
	}
	if report.FailedPages == nil {
		report.FailedPages = []int{}
	}

	for _, it := range res.Items {
		_, created, err := s.Catalog.UpsertExternal(ctx, it)
		switch {
		case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrConflict):
			report.Skipped++
			s.log.Info("import skipped item", "id", it.ID, "error", err)
		case err != nil:
			return report, err
		case created:
			report.Created++
		default:
			report.Updated++
		}
	}
	s.log.Info("import finished",
		"source", report.Source,
		"created", report.Created,
		"updated", report.Updated,
		"skipped", report.Skipped,
	)
	return report, nil
}

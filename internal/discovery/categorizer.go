package discovery

import (
	"cmp"
	"slices"
	"time"

	"streamhub/pkg/models"
)

const (
	BucketPopular     = "popular"
	BucketHighRated   = "highRated"
	BucketNewReleases = "newReleases"
	BucketFeatured    = "featured"
	BucketMyList      = "myList"

	genreBucketPrefix = "genre:"

	defaultBucketLimit = 20
	highRatedThreshold = 7.5
	newReleaseWindow   = 90 * 24 * time.Hour
)

// GenreLabels are the tags that get their own bucket.
var GenreLabels = []string{
	"action", "adventure", "comedy", "drama", "thriller",
	"horror", "romance", "sci-fi", "animation", "family",
}

// BucketRule selects and orders the items of one bucket. Ties left by Less
// are broken by ID ascending. Limit <= 0 means no cap.
type BucketRule struct {
	Name  string
	Match func(models.ContentItem) bool
	Less  func(a, b models.ContentItem) bool
	Limit int
}

// Options are the per-request inputs the rules depend on.
type Options struct {
	Now      time.Time
	SavedIDs []string
}

type Categorized struct {
	Order   []string // bucket names in rule order
	Buckets map[string][]models.ContentItem
}

// IDs returns the item ids of one bucket in order.
func (c Categorized) IDs(name string) []string {
	items := c.Buckets[name]
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

type Categorizer struct {
	Rules func(Options) []BucketRule
}

func NewCategorizer() *Categorizer {
	return &Categorizer{Rules: DefaultRules}
}

// Categorize builds every bucket, including empty ones. The output depends
// only on items and opts.
func (c *Categorizer) Categorize(items []models.ContentItem, opts Options) Categorized {
	rules := c.Rules(opts)
	out := Categorized{
		Order:   make([]string, 0, len(rules)),
		Buckets: make(map[string][]models.ContentItem, len(rules)),
	}
	for _, rule := range rules {
		out.Order = append(out.Order, rule.Name)
		out.Buckets[rule.Name] = applyRule(rule, items)
	}
	return out
}

func applyRule(rule BucketRule, items []models.ContentItem) []models.ContentItem {
	matched := make([]models.ContentItem, 0)
	for _, it := range items {
		if rule.Match == nil || rule.Match(it) {
			matched = append(matched, it)
		}
	}
	slices.SortFunc(matched, func(a, b models.ContentItem) int {
		if rule.Less != nil {
			if rule.Less(a, b) {
				return -1
			}
			if rule.Less(b, a) {
				return 1
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if rule.Limit > 0 && len(matched) > rule.Limit {
		matched = matched[:rule.Limit]
	}
	return matched
}

// DefaultRules: popular, highRated, newReleases, one bucket per genre label,
// featured, myList.
func DefaultRules(opts Options) []BucketRule {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	windowStart := now.Add(-newReleaseWindow)

	rules := []BucketRule{
		{
			Name:  BucketPopular,
			Less:  byViewsDesc,
			Limit: defaultBucketLimit,
		},
		{
			Name: BucketHighRated,
			Match: func(it models.ContentItem) bool {
				return it.Rating != nil && *it.Rating >= highRatedThreshold
			},
			Less:  byRatingDesc,
			Limit: defaultBucketLimit,
		},
		{
			Name: BucketNewReleases,
			Match: func(it models.ContentItem) bool {
				if it.ReleaseDate == nil {
					return false
				}
				d := *it.ReleaseDate
				return !d.Before(windowStart) && !d.After(now)
			},
			Less: func(a, b models.ContentItem) bool {
				return a.ReleaseDate.After(*b.ReleaseDate)
			},
			Limit: defaultBucketLimit,
		},
	}

	for _, label := range GenreLabels {
		rules = append(rules, BucketRule{
			Name: genreBucketPrefix + label,
			Match: func(it models.ContentItem) bool {
				return it.HasTag(label)
			},
			Less:  byRatingDesc,
			Limit: defaultBucketLimit,
		})
	}

	saved := make(map[string]int, len(opts.SavedIDs))
	for i, id := range opts.SavedIDs {
		if _, dup := saved[id]; !dup {
			saved[id] = i
		}
	}
	rules = append(rules,
		BucketRule{
			Name:  BucketFeatured,
			Match: func(it models.ContentItem) bool { return it.IsFeatured },
			Less:  byViewsDesc,
			Limit: defaultBucketLimit,
		},
		BucketRule{
			Name: BucketMyList,
			Match: func(it models.ContentItem) bool {
				_, ok := saved[it.ID]
				return ok
			},
			Less: func(a, b models.ContentItem) bool {
				return saved[a.ID] < saved[b.ID]
			},
		},
	)
	return rules
}

// GenreBucket returns the bucket name for a genre label.
func GenreBucket(label string) string { return genreBucketPrefix + label }

func byViewsDesc(a, b models.ContentItem) bool {
	return a.ViewCount > b.ViewCount
}

// unrated items sort after rated ones
func byRatingDesc(a, b models.ContentItem) bool {
	switch {
	case a.Rating == nil:
		return false
	case b.Rating == nil:
		return true
	default:
		return *a.Rating > *b.Rating
	}
}

package discovery

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"streamhub/internal/metrics"
	"streamhub/pkg/logger"
	"streamhub/pkg/models"
)

// Result is the merged output of one aggregation. An empty result is a
// valid outcome, not an error.
type Result struct {
	Items            []models.ContentItem
	Source           string // fetcher that served Items
	FailedPages      []int
	MalformedRecords int
}

func (r Result) Empty() bool { return len(r.Items) == 0 }

type Aggregator struct {
	Primary   PageFetcher
	Fallbacks []PageFetcher // tried in order while the result is empty
	Adapter   *Adapter

	// MaxParallel bounds concurrent page fetches; <= 0 means one per page.
	MaxParallel int

	log *logger.Logger
}

func NewAggregator(primary PageFetcher, adapter *Adapter, maxParallel int, log *logger.Logger, fallbacks ...PageFetcher) *Aggregator {
	if adapter == nil {
		adapter = NewAdapter()
	}
	return &Aggregator{
		Primary:     primary,
		Fallbacks:   fallbacks,
		Adapter:     adapter,
		MaxParallel: maxParallel,
		log:         logger.OrNop(log).With("component", "aggregator"),
	}
}

// adapted is one page after local adaptation.
type adapted struct {
	index     int
	items     []models.ContentItem
	malformed int
	err       error
}

// Aggregate fetches every requested page concurrently and merges the pages
// in the order they completed: for a repeated id the later page's value
// wins, placed where the id first appeared. When nothing usable comes back
// the fallbacks are tried in order. If ctx is done by the time all fetches
// have settled, the gathered pages are discarded.
func (a *Aggregator) Aggregate(ctx context.Context, pages []int) Result {
	pages = normalizePages(pages)
	if len(pages) == 0 {
		return Result{}
	}

	sources := make([]PageFetcher, 0, 1+len(a.Fallbacks))
	if a.Primary != nil {
		sources = append(sources, a.Primary)
	}
	sources = append(sources, a.Fallbacks...)

	var res Result
	for i, src := range sources {
		res = a.collect(ctx, src, pages)
		if ctx.Err() != nil {
			a.log.Warn("aggregation abandoned", "source", src.Name(), "error", ctx.Err())
			return Result{}
		}
		if !res.Empty() {
			if i > 0 {
				metrics.FallbacksUsed.WithLabelValues(src.Name()).Inc()
				a.log.Info("served by fallback", "source", src.Name(), "items", len(res.Items))
			}
			metrics.AggregatedItems.WithLabelValues(src.Name()).Add(float64(len(res.Items)))
			return res
		}
		a.log.Warn("source yielded nothing", "source", src.Name(), "failed_pages", res.FailedPages)
	}
	return Result{FailedPages: res.FailedPages, MalformedRecords: res.MalformedRecords}
}

func (a *Aggregator) collect(ctx context.Context, src PageFetcher, pages []int) Result {
	done := make(chan adapted, len(pages))

	var g errgroup.Group
	if a.MaxParallel > 0 {
		g.SetLimit(a.MaxParallel)
	}
	for _, p := range pages {
		g.Go(func() error {
			page := src.FetchPage(ctx, p)
			done <- a.adaptPage(src.Name(), page)
			return nil
		})
	}
	_ = g.Wait()
	close(done)

	res := Result{Source: src.Name()}
	if ctx.Err() != nil {
		return res
	}

	position := make(map[string]int)
	for pg := range done {
		res.MalformedRecords += pg.malformed
		if pg.err != nil {
			res.FailedPages = append(res.FailedPages, pg.index)
		}
		for _, item := range pg.items {
			if i, ok := position[item.ID]; ok {
				res.Items[i] = item
				continue
			}
			position[item.ID] = len(res.Items)
			res.Items = append(res.Items, item)
		}
	}
	return res
}

func (a *Aggregator) adaptPage(source string, page Page) adapted {
	out := adapted{index: page.Index, err: page.Err}
	out.items = make([]models.ContentItem, 0, len(page.Records))
	for _, raw := range page.Records {
		item, err := a.Adapter.Adapt(raw)
		if err != nil {
			out.malformed++
			a.log.Debug("dropping record", "source", source, "page", page.Index, "error", err)
			continue
		}
		out.items = append(out.items, item)
	}
	if out.malformed > 0 {
		metrics.MalformedRecords.WithLabelValues(source).Add(float64(out.malformed))
	}
	if page.Err != nil && !errors.Is(page.Err, context.Canceled) {
		a.log.Debug("page failed", "source", source, "page", page.Index, "error", page.Err)
	}
	return out
}

// normalizePages drops non-positive and repeated page numbers, keeping order.
func normalizePages(pages []int) []int {
	out := make([]int, 0, len(pages))
	seen := make(map[int]bool, len(pages))
	for _, p := range pages {
		if p <= 0 || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

package discovery

import (
	"streamhub/internal/content"
	"streamhub/pkg/logger"
	"streamhub/pkg/utils"
)

// FromConfig builds the pipeline: the configured upstream, then our own
// catalog as the fallback when enabled.
func FromConfig(cfg utils.DiscoveryConfig, contents *content.Repo, log *logger.Logger) *Service {
	upstream := NewHTTPFetcher(FetcherConfig{
		Name:          "upstream",
		BaseURL:       cfg.UpstreamURL,
		Path:          cfg.UpstreamPath,
		PageTimeout:   cfg.PageTimeout,
		Retries:       cfg.PageRetries,
		RatePerSecond: cfg.RatePerSecond,
	}, log)

	var fallbacks []PageFetcher
	if cfg.CatalogFallback {
		fallbacks = append(fallbacks, NewCatalogSource(contents))
	}
	agg := NewAggregator(upstream, NewAdapter(), cfg.MaxParallel, log, fallbacks...)
	return NewService(agg, contents, log)
}

package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"streamhub/internal/apperr"
	"streamhub/internal/metrics"
	"streamhub/pkg/logger"
)

// Page is the outcome of fetching one page. Records is always mergeable
// (possibly empty); Err only explains why it is empty.
type Page struct {
	Index   int
	Records []json.RawMessage
	Err     error
}

// PageFetcher retrieves one page of raw records from a source.
// Failures are reported in Page.Err, never returned.
type PageFetcher interface {
	Name() string
	FetchPage(ctx context.Context, page int) Page
}

// envelope members that may carry the record array
var envelopeKeys = []string{"results", "data", "items", "content"}

const maxPageBytes = 8 << 20

type FetcherConfig struct {
	Name          string
	BaseURL       string
	Path          string
	PageTimeout   time.Duration
	Retries       uint
	RetryDelay    time.Duration
	RatePerSecond float64 // 0 disables client-side limiting
	Client        *http.Client
}

// HTTPFetcher reads GET {BaseURL}{Path}?page=N with a per-page budget,
// bounded retries, a circuit breaker and an optional rate limit.
type HTTPFetcher struct {
	cfg     FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]json.RawMessage]
	log     *logger.Logger
}

func NewHTTPFetcher(cfg FetcherConfig, log *logger.Logger) *HTTPFetcher {
	if cfg.Name == "" {
		cfg.Name = "upstream"
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 8 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	f := &HTTPFetcher{
		cfg:    cfg,
		client: client,
		log:    logger.OrNop(log).With("component", "fetcher", "source", cfg.Name),
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	breakerName := "upstream-" + cfg.Name
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	f.breaker = gobreaker.NewCircuitBreaker[[]json.RawMessage](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.log.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return f
}

// countsAsHealthy decides what the breaker records as a success. The caller
// giving up, a client error or a malformed payload says nothing about the
// upstream being down.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, errMalformedPage) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code < 500 && se.code != http.StatusTooManyRequests
	}
	return false
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

func (f *HTTPFetcher) Name() string { return f.cfg.Name }

func (f *HTTPFetcher) FetchPage(ctx context.Context, page int) Page {
	out := Page{Index: page}
	if page <= 0 {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.PageTimeout)
	defer cancel()

	start := time.Now()
	records, err := f.breaker.Execute(func() ([]json.RawMessage, error) {
		return retry.DoWithData(
			func() ([]json.RawMessage, error) { return f.fetchOnce(ctx, page) },
			retry.Context(ctx),
			retry.Attempts(f.cfg.Retries+1),
			retry.Delay(f.cfg.RetryDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				f.log.Debug("retrying page", "page", page, "attempt", n+1, "error", err)
			}),
		)
	})
	metrics.PageFetchDuration.WithLabelValues(f.cfg.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := metrics.OutcomeFailed
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = metrics.OutcomeRejected
		case errors.Is(err, errMalformedPage):
			outcome = metrics.OutcomeMalformed
		}
		metrics.PagesFetched.WithLabelValues(f.cfg.Name, outcome).Inc()
		f.log.Warn("page unavailable", "page", page, "outcome", outcome, "error", err)
		out.Err = &apperr.UpstreamUnavailableError{Source: f.cfg.Name, Page: page, Err: err}
		return out
	}

	metrics.PagesFetched.WithLabelValues(f.cfg.Name, metrics.OutcomeOK).Inc()
	out.Records = records
	return out
}

var errMalformedPage = errors.New("malformed page payload")

type statusError struct {
	code int
}

func (e *statusError) Error() string { return "upstream status " + strconv.Itoa(e.code) }

func (f *HTTPFetcher) pageURL(page int) (string, error) {
	u, err := url.Parse(strings.TrimRight(f.cfg.BaseURL, "/") + f.cfg.Path)
	if err != nil {
		return "", fmt.Errorf("parse upstream url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetchOnce is one attempt. Client errors and malformed payloads are not retried.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, page int) ([]json.RawMessage, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target, err := f.pageURL(page)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return nil, &statusError{code: resp.StatusCode}
	case resp.StatusCode >= 400:
		return nil, retry.Unrecoverable(&statusError{code: resp.StatusCode})
	}

	records, ok := ParsePage(body)
	if !ok {
		return nil, retry.Unrecoverable(errMalformedPage)
	}
	return records, nil
}

// ParsePage extracts the record array from a page payload: either a bare
// array or an object with a results/data/items/content array.
func ParsePage(body []byte) ([]json.RawMessage, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	root := gjson.ParseBytes(body)
	arr := root
	if root.IsObject() {
		arr = gjson.Result{}
		for _, key := range envelopeKeys {
			if v := root.Get(key); v.IsArray() {
				arr = v
				break
			}
		}
	}
	if !arr.IsArray() {
		return nil, false
	}

	elems := arr.Array()
	records := make([]json.RawMessage, 0, len(elems))
	for _, el := range elems {
		records = append(records, json.RawMessage(el.Raw))
	}
	return records, true
}

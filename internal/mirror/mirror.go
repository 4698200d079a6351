// Package mirror serves a fixture catalog as a paged upstream feed, for
// local runs of the discovery pipeline.
package mirror

import (
	_ "embed"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"streamhub/pkg/logger"
)

//go:embed fixtures/titles.json
var defaultFixture []byte

// DefaultFixture is the built-in sample catalog.
func DefaultFixture() []byte { return defaultFixture }

type Options struct {
	PageSize  int
	FailPages []int         // answered with 503
	Delay     time.Duration // added before every page
	Bare      bool          // bare array instead of a results envelope
}

type Mirror struct {
	records []json.RawMessage
	opts    Options
	log     *logger.Logger
}

type page struct {
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
	Results    []json.RawMessage `json:"results"`
}

// New splits fixture, a JSON array of records, into pages.
func New(fixture []byte, opts Options, log *logger.Logger) (*Mirror, error) {
	if !gjson.ValidBytes(fixture) {
		return nil, errors.New("fixture is not valid JSON")
	}
	root := gjson.ParseBytes(fixture)
	if !root.IsArray() {
		return nil, errors.New("fixture must be a JSON array")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 12
	}

	m := &Mirror{opts: opts, log: logger.OrNop(log).With("component", "mirror")}
	for _, el := range root.Array() {
		m.records = append(m.records, json.RawMessage(el.Raw))
	}
	return m, nil
}

func (m *Mirror) TotalPages() int {
	return (len(m.records) + m.opts.PageSize - 1) / m.opts.PageSize
}

// Page returns the records of page n (1-based); past the end it is empty.
func (m *Mirror) Page(n int) []json.RawMessage {
	start := (n - 1) * m.opts.PageSize
	if n < 1 || start >= len(m.records) {
		return []json.RawMessage{}
	}
	end := min(start+m.opts.PageSize, len(m.records))
	return m.records[start:end]
}

func (m *Mirror) RegisterRoutes(r gin.IRouter) {
	r.GET("/titles", m.titles) // GET /titles?page=N
}

func (m *Mirror) titles(c *gin.Context) {
	n := 1
	if raw := c.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a number"})
			return
		}
		n = v
	}

	if m.opts.Delay > 0 {
		select {
		case <-time.After(m.opts.Delay):
		case <-c.Request.Context().Done():
			return
		}
	}
	if slices.Contains(m.opts.FailPages, n) {
		m.log.Debug("failing page on purpose", "page", n)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "page unavailable"})
		return
	}

	var body any = page{Page: n, TotalPages: m.TotalPages(), Results: m.Page(n)}
	if m.opts.Bare {
		body = m.Page(n)
	}
	b, err := json.Marshal(body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode page"})
		return
	}
	c.Data(http.StatusOK, "application/json", b)
}

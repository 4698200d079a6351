package genre

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"streamhub/internal/events"
	"streamhub/internal/testutil"
)

type recorder struct{ got []events.CatalogEvent }

func (r *recorder) Publish(ev events.CatalogEvent) { r.got = append(r.got, ev) }

func newRouter(t *testing.T) (*gin.Engine, *recorder) {
	gin.SetMode(gin.TestMode)
	rec := &recorder{}
	r := gin.New()
	NewHandler(NewRepo(testutil.DB(t)), rec).RegisterRoutes(r.Group("/genres"))
	return r, rec
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGenreHandlerLifecycle(t *testing.T) {
	r, rec := newRouter(t)

	w := do(r, http.MethodPost, "/genres", `{"name":"Thriller"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Thriller"`)

	w = do(r, http.MethodGet, "/genres?name=thriller", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Thriller"`)

	w = do(r, http.MethodPatch, "/genres/1", `{"description":"tense"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"description":"tense"`)

	w = do(r, http.MethodDelete, "/genres/1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/genres/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	if assert.Len(t, rec.got, 3) {
		assert.Equal(t, "genre.created", rec.got[0].Type)
		assert.Equal(t, "genre.updated", rec.got[1].Type)
		assert.Equal(t, "genre.deleted", rec.got[2].Type)
	}
}

func TestGenreHandlerRejectsBadInput(t *testing.T) {
	r, rec := newRouter(t)

	w := do(r, http.MethodPost, "/genres", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"fields"`)

	w = do(r, http.MethodPost, "/genres", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/genres/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, rec.got)
}

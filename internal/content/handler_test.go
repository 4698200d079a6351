package content

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"streamhub/internal/testutil"
)

func newRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewRepo(testutil.DB(t)), nil).RegisterRoutes(r.Group("/content"))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestContentHandler(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/content", `{"title":"Deep Sea","category":"doc","releaseDate":"2024-05-01T00:00:00Z","tags":["nature"]}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"documentary"`)

	w = do(r, http.MethodPost, "/content", `{"title":"Bad","category":"INVALID"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"category"`)

	w = do(r, http.MethodGet, "/content?category=documentary", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = do(r, http.MethodPatch, "/content/1", `{"isFeatured":true}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isFeatured":true`)

	w = do(r, http.MethodDelete, "/content/1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, "/content/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

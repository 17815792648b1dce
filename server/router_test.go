package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, bearer string) (string, error) {
	if bearer == "good" {
		return "user-1", nil
	}
	return "", errors.New("bad token")
}

type stubHandlers struct{}

func (stubHandlers) Publish(c *gin.Context)        { c.String(http.StatusOK, "publish:"+c.GetString("user_id")) }
func (stubHandlers) GetPlatforms(c *gin.Context)   { c.String(http.StatusOK, "platforms") }
func (stubHandlers) GetReports(c *gin.Context)     { c.String(http.StatusOK, "reports") }
func (stubHandlers) GetConnections(c *gin.Context) { c.String(http.StatusOK, "connections") }
func (stubHandlers) PutCredential(c *gin.Context)  { c.Status(http.StatusNoContent) }
func (stubHandlers) Serve(c *gin.Context)          { c.String(http.StatusOK, "media:"+c.Param("handle")) }

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := stubHandlers{}
	stream := func(c *gin.Context) { c.String(http.StatusOK, "stream") }
	return InitiateRouter([]string{"https://app.example.com"}, stubVerifier{}, h, h, h, stream)
}

func TestRouter_APIRequiresAuth(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/publish", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/publish", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "publish:user-1", w.Body.String())
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter()

	for path, want := range map[string]int{
		"/healthz":             http.StatusOK,
		"/metrics":             http.StatusOK,
		"/media/abc.jpg":       http.StatusOK,
		"/api/publish/stream":  http.StatusUnauthorized,
		"/api/publish/reports": http.StatusUnauthorized,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}

func TestRouter_CORS(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/publish", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/api/publish", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, reg *prometheus.Registry, out *strings.Builder) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger(logging.NewConsoleLogger("api", out, logging.DEBUG)).Handler())
	pm := NewPrometheusMiddleware("test", reg)
	r.Use(pm.Handler())
	pm.RegisterMetricsEndpoint(r, reg)
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(TraceIDKey)) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	return r
}

func TestRequestLoggerTraceID(t *testing.T) {
	var out strings.Builder
	r := newRouter(t, prometheus.NewRegistry(), &out)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	require.Equal(t, http.StatusOK, w.Code)
	traceID := w.Header().Get(TraceHeader)
	require.NotEmpty(t, traceID)
	assert.Equal(t, traceID, w.Body.String())
	assert.Contains(t, out.String(), "GET /ok 200")
	assert.Contains(t, out.String(), "trace="+traceID)
}

func TestPrometheusMiddleware(t *testing.T) {
	var out strings.Builder
	reg := prometheus.NewRegistry()
	r := newRouter(t, reg, &out)

	for _, path := range []string{"/ok", "/ok", "/fail", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := testutil.GatherAndCount(reg, "test_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "ok, fail и unmatched")

	count, err = testutil.GatherAndCount(reg, "test_http_request_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_inflight")
}

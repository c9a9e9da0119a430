package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/q-controller/mediarelay/src/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.CacheLookup("raw", true)
	m.Transcode("jpeg", "ok", time.Second)
	m.StoreOp("get", errors.New("x"))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(h))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := metrics.New()
	m.CacheLookup("raw", false)
	m.CacheLookup("raw", true)
	m.StoreOp("put", nil)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found.", http.StatusNotFound)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/i/abc.jpg", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	count, err := testutil.GatherAndCount(m.Registry(), "mediarelay_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `mediarelay_cache_lookups_total{result="hit",tier="raw"} 1`))
	assert.True(t, strings.Contains(text, `mediarelay_http_requests_total{code="404",route="download"} 1`))
	assert.True(t, strings.Contains(text, `mediarelay_store_operations_total{op="put",result="ok"} 1`))
}

func TestRoute(t *testing.T) {
	assert.Equal(t, "upload", metrics.Route("/upload"))
	assert.Equal(t, "download", metrics.Route("/i/x.jpg"))
	assert.Equal(t, "docs", metrics.Route("/docs/index.html"))
	assert.Equal(t, "other", metrics.Route("/favicon.ico"))
}

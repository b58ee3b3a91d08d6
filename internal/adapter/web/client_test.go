package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/snow-emergency-monitor/internal/observability"
)

const (
	testUserAgent     = "snow-test/1.0"
	contentTypeHTML   = "text/html; charset=utf-8"
	headerContentType = "Content-Type"
)

const updatesPage = `<!doctype html>
<html><head><title>Snow updates</title><script>var x = "snow emergency declared";</script></head>
<body>
  <article class="news-item">
    <div class="news-date"><span class="news-date__month">Dec</span> <span class="news-date__day">1</span></div>
    <h2>Snow Emergency declared</h2>
    <p>A Snow&nbsp;Emergency is in effect. Day 1 parking rules begin at 9 p.m.</p>
  </article>
  <p>Example from last season: December 19, 2024.</p>
</body></html>`

func testClient(timeout time.Duration) (*Client, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return NewClient(timeout, testUserAgent, metrics, slog.New(slog.NewTextHandler(io.Discard, nil))), metrics
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set(headerContentType, contentTypeHTML)
		_, _ = io.WriteString(w, updatesPage)
	}))
	defer srv.Close()

	c, _ := testClient(5 * time.Second)
	page, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "news-date__month")
}

func TestClient_Fetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := testClient(5 * time.Second)
	page, err := c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, http.StatusServiceUnavailable, page.StatusCode)
}

func TestClient_Probe_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeHTML)
		_, _ = io.WriteString(w, updatesPage)
	}))
	defer srv.Close()

	c, metrics := testClient(5 * time.Second)
	res := c.Probe(context.Background(), "updates", srv.URL)

	require.True(t, res.OK)
	require.NoError(t, res.Err)
	assert.Equal(t, "updates", res.Name)
	assert.Contains(t, res.Text, "Snow Emergency declared")
	assert.NotContains(t, res.Text, "var x")
	require.NotNil(t, res.Fragment)
	assert.Equal(t, "Dec", res.Fragment.Month)
	assert.Equal(t, "1", res.Fragment.Day)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ProbeRequests.WithLabelValues("updates", "success")), 0)
}

func TestClient_Probe_TimeoutIsFailureValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, metrics := testClient(50 * time.Millisecond)
	res := c.Probe(context.Background(), "homepage", srv.URL)

	assert.False(t, res.OK)
	assert.Error(t, res.Err)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ProbeRequests.WithLabelValues("homepage", "error")), 0)
}

func TestClient_Probe_StatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, metrics := testClient(5 * time.Second)
	res := c.Probe(context.Background(), "homepage", srv.URL)

	assert.False(t, res.OK)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ProbeRequests.WithLabelValues("homepage", "status")), 0)
}

func TestClient_Probe_InvalidURL(t *testing.T) {
	c, _ := testClient(time.Second)
	res := c.Probe(context.Background(), "homepage", "://bad")
	assert.False(t, res.OK)
	assert.Error(t, res.Err)
}

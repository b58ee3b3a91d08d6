package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
	"github.com/couchcryptid/snow-emergency-monitor/internal/observability"
)

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 4 << 20

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Client fetches city web pages and turns them into probe results.
type Client struct {
	httpClient *http.Client
	userAgent  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a page client whose requests are bounded by timeout.
func NewClient(timeout time.Duration, userAgent string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		metrics:   metrics,
		logger:    logger,
	}
}

// Fetch GETs url. A non-200 status is returned as an error alongside the page.
func (c *Client) Fetch(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{URL: url}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{URL: url}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	page := Page{URL: url, StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return page, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return page, fmt.Errorf("read %s: %w", url, err)
	}
	page.Body = body
	return page, nil
}

// Probe fetches and parses one page. It never returns an error: transport
// and parse failures are reported through ProbeResult.Err so the caller can
// treat the probe as "no evidence".
func (c *Client) Probe(ctx context.Context, name, url string) domain.ProbeResult {
	start := time.Now()
	page, err := c.Fetch(ctx, url)
	c.metrics.ProbeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	result := domain.ProbeResult{Name: name, URL: url, StatusCode: page.StatusCode}
	if err != nil {
		outcome := "error"
		if page.StatusCode != 0 {
			outcome = "status"
		}
		c.metrics.ProbeRequests.WithLabelValues(name, outcome).Inc()
		c.logger.Warn("probe failed", "probe", name, "url", url, "status", page.StatusCode, "error", err)
		result.Err = err
		return result
	}

	doc, err := ParseDocument(bytes.NewReader(page.Body))
	if err != nil {
		c.metrics.ProbeRequests.WithLabelValues(name, "error").Inc()
		c.logger.Warn("probe parse failed", "probe", name, "url", url, "error", err)
		result.Err = err
		return result
	}

	c.metrics.ProbeRequests.WithLabelValues(name, "success").Inc()
	result.OK = true
	result.Text = doc.Text
	result.Fragment = doc.Fragment
	c.logger.Debug("probe fetched",
		"probe", name,
		"title", doc.Title,
		"bytes", len(page.Body),
		"has_fragment", doc.Fragment != nil,
	)
	return result
}

package naver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wonny/wuxing-quant/pkg/httputil"
	"github.com/wonny/wuxing-quant/pkg/logger"
)

const (
	DefaultBaseURL  = "https://finance.naver.com"
	DefaultChartURL = "https://fchart.stock.naver.com"
)

// Client handles communication with Naver Finance
// ⭐ SSOT: Naver Finance API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	chartURL   string
	location   *time.Location // trade dates are stamped at midnight here
	maxPages   int
}

// NewClient creates a new Naver Finance client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient.
			WithHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36").
			WithHeader("Referer", DefaultBaseURL+"/"),
		logger:   log.WithField("module", "naver"),
		baseURL:  DefaultBaseURL,
		chartURL: DefaultChartURL,
		location: time.UTC,
		maxPages: 150,
	}
}

// WithURLs overrides the HTML and chart endpoints (empty keeps the current value)
func (c *Client) WithURLs(baseURL, chartURL string) *Client {
	if baseURL != "" {
		c.baseURL = baseURL
	}
	if chartURL != "" {
		c.chartURL = chartURL
	}
	return c
}

// WithLocation sets the zone trade dates are stamped in
func (c *Client) WithLocation(loc *time.Location) *Client {
	if loc != nil {
		c.location = loc
	}
	return c
}

// WithMaxPages bounds HTML fallback pagination
func (c *Client) WithMaxPages(n int) *Client {
	if n > 0 {
		c.maxPages = n
	}
	return c
}

// fetch GETs base+path and returns the body
func (c *Client) fetch(ctx context.Context, base, path string, params url.Values) ([]byte, error) {
	fullURL := base + path
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// date builds midnight of y-m-d in the client's location
func (c *Client) date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, c.location)
}

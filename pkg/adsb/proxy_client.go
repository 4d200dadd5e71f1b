package adsb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skywatch-alerts/skywatch/pkg/cache"
)

// DefaultProxyURL is where the dashboard's flights proxy is mounted.
const DefaultProxyURL = "http://localhost:8080/api/flights"

// DefaultTimeout for a single proxy request.
const DefaultTimeout = 10 * time.Second

// Response is a raw proxy response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport issues one request to the flights proxy. An error means the
// request never produced an HTTP response.
type Transport interface {
	Do(ctx context.Context, q cache.Query) (*Response, error)

	// Endpoint names the proxy for rate-limit bookkeeping.
	Endpoint() string
}

// ProxyClient is the HTTP Transport for the flights proxy:
// GET <proxy>?lat=<float>&lon=<float>&radius=<int>.
type ProxyClient struct {
	// proxyURL is the parsed proxy URL (e.g., http://host/api/flights); any
	// query it carries is kept on every request
	proxyURL *url.URL

	// endpoint is the proxy path, used as the rate-limit key
	endpoint string

	httpClient *http.Client
}

// NewProxyClient creates a client for the proxy at proxyURL. A zero timeout
// uses DefaultTimeout.
func NewProxyClient(proxyURL string, timeout time.Duration) (*ProxyClient, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL %q: scheme and host required", proxyURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	endpoint := u.Path
	if endpoint == "" {
		endpoint = "/"
	}

	return &ProxyClient{
		proxyURL: u,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Endpoint returns the proxy path.
func (c *ProxyClient) Endpoint() string {
	return c.endpoint
}

// Do performs one GET against the proxy and reads the whole body.
func (c *ProxyClient) Do(ctx context.Context, q cache.Query) (*Response, error) {
	target := *c.proxyURL
	params := target.Query()
	params.Set("lat", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(q.Radius))

	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

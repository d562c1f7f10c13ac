// Package client provides the outbound HTTP client used to fetch target URLs.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"streamvault-proxy/internal/config"
	"streamvault-proxy/internal/metrics"
	"streamvault-proxy/internal/model"
)

// acceptEncoding is what a browser fetch negotiates; Decode handles each of them.
const acceptEncoding = "gzip, deflate, br"

// UpstreamClient fetches arbitrary http(s) target URLs.
type UpstreamClient struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and a redirect limit.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
// No client-wide or transport-level timeout is set: callers bound each fetch
// with a context deadline.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	maxRedirects := cfg.Upstream.MaxRedirects

	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: cfg.Upstream.UserAgent,
		logger:    logger.With("component", "upstream_client"),
		metrics:   m,
	}
}

// Do executes an HTTP request against the upstream and returns the response
// with a content-decoded body. The caller is responsible for closing it.
func (c *UpstreamClient) Do(req *http.Request) (*model.UpstreamResponse, error) {
	c.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	body, decoded := Decode(resp.Header.Get("Content-Encoding"), resp.Body)
	if decoded {
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Fetch builds the outbound request for a target URL and executes it.
// Only the fixed User-Agent, Accept and Accept-Encoding headers are sent.
// The provided context bounds the whole exchange, body read included.
func (c *UpstreamClient) Fetch(ctx context.Context, method, targetURL string, body []byte) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, targetURL, bodyReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", acceptEncoding)

	return c.Do(req)
}

// bodyReader returns nil for an empty body so GET requests carry no Content-Length.
// A *bytes.Reader lets net/http replay the body on 307/308 redirects.
func bodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return bytes.NewReader(body)
}

// statusText returns the reason phrase the upstream sent, falling back to the
// standard text for the code (HTTP/2 has no reason phrase on the wire).
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if text, ok := strings.CutPrefix(resp.Status, code+" "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// Package service implements the core proxy forwarding logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"streamvault-proxy/internal/client"
	"streamvault-proxy/internal/config"
	"streamvault-proxy/internal/contenttype"
	"streamvault-proxy/internal/metrics"
	"streamvault-proxy/internal/model"
)

var (
	// ErrMissingURL is returned when the request carries no url parameter.
	ErrMissingURL = errors.New(`missing "url" query parameter`)
	// ErrInvalidURL is returned when the decoded target is not an http(s) URL.
	ErrInvalidURL = errors.New("invalid URL: must start with http:// or https://")
	// ErrMalformedURI is returned when the extra percent-decoding fails or
	// yields invalid UTF-8. It is not a validation error and maps to 500.
	ErrMalformedURI = errors.New("URI malformed")
	// ErrUpstreamTimeout is returned when the upstream exchange outlives the timeout.
	ErrUpstreamTimeout = errors.New("upstream request timed out")
	// ErrResponseTooLarge is returned when the upstream body exceeds max_response_bytes.
	ErrResponseTooLarge = errors.New("upstream response too large")
)

// UpstreamStatusError reports a non-2xx upstream reply.
type UpstreamStatusError struct {
	StatusCode int
	StatusText string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("Upstream returned %d %s", e.StatusCode, e.StatusText)
}

// ProxyService handles the forwarding logic for proxy requests.
type ProxyService struct {
	client   *client.UpstreamClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	maxBytes int64
}

// NewProxyService creates a ProxyService. The metrics parameter is optional.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		client:   c,
		logger:   logger.With("component", "proxy_service"),
		metrics:  m,
		timeout:  cfg.Upstream.Timeout(),
		maxBytes: cfg.Upstream.MaxResponseBytes,
	}
}

// Timeout returns the bound applied to each upstream exchange.
func (s *ProxyService) Timeout() time.Duration {
	return s.timeout
}

// TargetURL validates the url query parameter. present reports whether the
// parameter was supplied at all; an empty value counts as missing.
// The value is percent-decoded once more, since clients commonly
// encodeURIComponent the target before placing it in the query string.
func TargetURL(raw string, present bool) (string, error) {
	if !present || raw == "" {
		return "", ErrMissingURL
	}

	target, err := url.PathUnescape(raw)
	if err != nil || !utf8.ValidString(target) {
		return "", ErrMalformedURI
	}

	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return "", ErrInvalidURL
	}
	return target, nil
}

// Forward fetches the target URL and returns the buffered, classified body.
//
// The exchange, from dialing through the final body read, is bounded by the
// configured timeout. Exceeding it yields ErrUpstreamTimeout; a non-2xx reply
// yields *UpstreamStatusError; anything else is a wrapped transport error.
func (s *ProxyService) Forward(fr *model.ForwardRequest) (*model.ForwardResult, error) {
	method := http.MethodGet
	var body []byte
	if fr.Method == http.MethodPost {
		method = http.MethodPost
		body = fr.Body
	}

	ctx, cancel := context.WithTimeout(fr.Ctx, s.timeout)
	defer cancel()

	s.logger.Debug("forwarding request",
		"method", method,
		"target", Redact(fr.TargetURL),
	)

	resp, err := s.client.Fetch(ctx, method, fr.TargetURL, body)
	if err != nil {
		return nil, s.fail(ctx, fmt.Errorf("forward to upstream: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.recordFailure("status")
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode, StatusText: resp.StatusText}
	}

	data, err := s.readBody(resp.Body)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	ct := contenttype.Classify(resp.Header.Get("Content-Type"), fr.TargetURL, data)
	if s.metrics != nil {
		s.metrics.ClassifiedResponses.WithLabelValues(string(ct.Kind)).Inc()
	}

	return &model.ForwardResult{
		Kind:        string(ct.Kind),
		ContentType: ct.ContentType,
		Body:        data,
	}, nil
}

func (s *ProxyService) readBody(r io.Reader) ([]byte, error) {
	if s.maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upstream body: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrResponseTooLarge, s.maxBytes)
	}
	return data, nil
}

// fail classifies a failed exchange. Once the deadline has passed, every
// error is reported as a timeout: the transport surfaces an aborted read in
// several shapes, not all of which wrap context.DeadlineExceeded.
func (s *ProxyService) fail(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.recordFailure("timeout")
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	}
	s.recordFailure("transport")
	return err
}

func (s *ProxyService) recordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.UpstreamFailures.WithLabelValues(reason).Inc()
	}
}

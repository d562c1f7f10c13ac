package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"streamvault-proxy/internal/middleware"
	"streamvault-proxy/internal/model"
	"streamvault-proxy/internal/service"
)

// cacheControl lets a CDN in front of the proxy serve a response for a minute
// and revalidate in the background for two more.
const cacheControl = "s-maxage=60, stale-while-revalidate=120"

// ProxyHandler fetches the URL named by the url query parameter and relays it.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle serves one proxy call: validate, fetch upstream, classify, respond.
func (h *ProxyHandler) Handle(c echo.Context) error {
	middleware.SetCORSHeaders(c.Response().Header())

	req := c.Request()
	if req.Method == http.MethodOptions {
		return c.NoContent(http.StatusOK)
	}

	raw, present := queryParam(c, "url")
	target, err := service.TargetURL(raw, present)
	if err != nil {
		return h.mapError(c, "", err)
	}

	fr := &model.ForwardRequest{
		Ctx:       req.Context(),
		Method:    req.Method,
		TargetURL: target,
	}
	if req.Method == http.MethodPost {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return h.mapError(c, target, fmt.Errorf("read request body: %w", err))
		}
		fr.Body = body
	}

	res, err := h.service.Forward(fr)
	if err != nil {
		return h.mapError(c, target, err)
	}

	c.Response().Header().Set("Cache-Control", cacheControl)
	return c.Blob(http.StatusOK, res.ContentType, res.Body)
}

// queryParam looks up a query parameter, reporting whether it was present.
func queryParam(c echo.Context, name string) (string, bool) {
	vals, ok := c.QueryParams()[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func (h *ProxyHandler) mapError(c echo.Context, target string, err error) error {
	status, msg := h.classifyError(err)

	attrs := []any{
		"err", service.Redact(err.Error()),
		"status", status,
	}
	if target != "" {
		attrs = append(attrs, "target", service.Redact(target))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("proxy error", attrs...)
	} else {
		h.logger.Warn("proxy error", attrs...)
	}

	return c.JSON(status, map[string]string{"error": msg})
}

// classifyError maps a failure to the status code and message sent to the caller.
func (h *ProxyHandler) classifyError(err error) (int, string) {
	if errors.Is(err, service.ErrMissingURL) {
		return http.StatusBadRequest, `Missing "url" query parameter`
	}

	if errors.Is(err, service.ErrInvalidURL) {
		return http.StatusBadRequest, "Invalid URL: must start with http:// or https://"
	}

	if errors.Is(err, service.ErrUpstreamTimeout) {
		return http.StatusGatewayTimeout, fmt.Sprintf(
			"Request timed out: upstream server took too long (%s limit)", h.service.Timeout())
	}

	var se *service.UpstreamStatusError
	if errors.As(err, &se) {
		return se.StatusCode, se.Error()
	}

	msg := err.Error()
	if msg == "" {
		msg = "Unknown error"
	}
	return http.StatusInternalServerError, "Proxy error: " + msg
}

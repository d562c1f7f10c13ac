package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequestLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequestLogger_LogsHostNotCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/api/proxy", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	target := "http%3A%2F%2Fpanel.example.com%2Fplayer_api.php%3Fusername%3Dalice%26password%3Ds3cret"
	req := httptest.NewRequest(http.MethodGet, "/api/proxy?url="+target, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := buf.String()
	if !strings.Contains(out, "upstream_host=panel.example.com") {
		t.Errorf("log output missing upstream_host: %q", out)
	}
	if strings.Contains(out, "s3cret") {
		t.Errorf("log output leaked password: %q", out)
	}
}

func TestTargetHost(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"http://example.com/list.m3u", "example.com"},
		{"https%3A%2F%2Fexample.com%3A8080%2Fx", "example.com"},
		{"not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := targetHost(tt.raw); got != tt.want {
				t.Errorf("targetHost(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

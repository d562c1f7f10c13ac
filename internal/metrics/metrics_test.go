package metrics

import (
	"testing"
)

func TestNew_GathersMetrics(t *testing.T) {
	m := New()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	// Should include at least Go runtime and process collectors.
	if len(families) == 0 {
		t.Fatal("expected non-empty metric families from Gather()")
	}

	m.RequestsTotal.WithLabelValues("GET", "200", "/api/proxy").Inc()
	m.ClassifiedResponses.WithLabelValues("json").Inc()
	m.UpstreamFailures.WithLabelValues("timeout").Inc()

	families, err = m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	want := map[string]bool{
		"streamvault_proxy_http_requests_total":        false,
		"streamvault_proxy_classified_responses_total": false,
		"streamvault_proxy_upstream_failures_total":    false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected %s in gathered metrics", name)
		}
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"PUT", "PUT"},
		{"DELETE", "DELETE"},
		{"PATCH", "PATCH"},
		{"HEAD", "HEAD"},
		{"OPTIONS", "OPTIONS"},
		{"FOOBAR", "other"},
		{"get", "other"},
		{"X-CUSTOM", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got := NormalizeMethod(tt.method)
			if got != tt.want {
				t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		extra []string
		want  string
	}{
		{"proxy", "/api/proxy", nil, "/api/proxy"},
		{"proxy trailing slash", "/api/proxy/", nil, "/api/proxy"},
		{"healthz", "/healthz", nil, "/healthz"},
		{"status", "/proxy/status", nil, "/proxy/status"},
		{"unknown", "/unknown", nil, "other"},
		{"root", "/", nil, "other"},
		{"prefix lookalike", "/api/proxying", nil, "other"},
		{"default scrape path", "/metrics", []string{"/metrics"}, "/metrics"},
		{"custom scrape path", "/internal/metrics", []string{"/internal/metrics"}, "/internal/metrics"},
		{"default path with custom scrape path", "/metrics", []string{"/internal/metrics"}, "other"},
		{"scrape path not configured", "/metrics", nil, "other"},
		{"empty extra prefix ignored", "/anything", []string{""}, "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePath(tt.path, tt.extra...)
			if got != tt.want {
				t.Errorf("NormalizePath(%q, %q) = %q, want %q", tt.path, tt.extra, got, tt.want)
			}
		})
	}
}

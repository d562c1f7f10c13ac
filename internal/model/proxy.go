// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ForwardRequest is one inbound call, reduced to what is sent upstream.
// Inbound headers are never forwarded.
type ForwardRequest struct {
	Ctx       context.Context
	Method    string
	TargetURL string
	Body      []byte // nil unless the inbound method is POST
}

// UpstreamResponse is the raw upstream reply. Body is already content-decoded
// and must be closed by the caller.
type UpstreamResponse struct {
	StatusCode int
	StatusText string
	Header     http.Header
	Body       io.ReadCloser
}

// ForwardResult is a successful, fully buffered and classified upstream body.
type ForwardResult struct {
	Kind        string
	ContentType string
	Body        []byte
}

package client

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// Decode wraps body so reads yield the payload with every Content-Encoding
// layer removed. It reports false and returns body unchanged when the header
// is empty, identity, or names a coding the client never offered.
//
// Decoders are opened on first Read, so a malformed or empty encoded body
// surfaces as a read error rather than failing the exchange up front.
func Decode(contentEncoding string, body io.ReadCloser) (io.ReadCloser, bool) {
	codings := parseCodings(contentEncoding)
	if len(codings) == 0 {
		return body, false
	}
	for _, c := range codings {
		switch c {
		case "gzip", "x-gzip", "deflate", "br":
		default:
			return body, false
		}
	}

	return &decodedBody{
		raw: body,
		open: func() (io.Reader, error) {
			var r io.Reader = body
			// Codings are listed in the order they were applied.
			for i := len(codings) - 1; i >= 0; i-- {
				next, err := openDecoder(codings[i], r)
				if err != nil {
					return nil, err
				}
				r = next
			}
			return r, nil
		},
	}, true
}

func parseCodings(header string) []string {
	var codings []string
	for _, part := range strings.Split(header, ",") {
		c := strings.ToLower(strings.TrimSpace(part))
		if c == "" || c == "identity" {
			continue
		}
		codings = append(codings, c)
	}
	return codings
}

func openDecoder(coding string, r io.Reader) (io.Reader, error) {
	switch coding {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return gz, nil
	case "deflate":
		return newDeflateReader(r)
	case "br":
		return brotli.NewReader(r), nil
	}
	return nil, fmt.Errorf("unsupported content encoding %q", coding)
}

// newDeflateReader accepts both zlib-wrapped deflate (what RFC 9110 means)
// and the raw deflate streams some servers send instead.
func newDeflateReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if isZlibHeader(head[0], head[1]) {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return zr, nil
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

type decodedBody struct {
	raw  io.ReadCloser
	open func() (io.Reader, error)
	r    io.Reader
	err  error
}

func (d *decodedBody) Read(p []byte) (int, error) {
	if d.r == nil && d.err == nil {
		d.r, d.err = d.open()
	}
	if d.err != nil {
		return 0, d.err
	}
	return d.r.Read(p)
}

func (d *decodedBody) Close() error {
	return d.raw.Close()
}

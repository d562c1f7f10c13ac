// Package contenttype decides which Content-Type the proxy reports for an
// upstream body. Upstream IPTV panels frequently mislabel their responses
// (JSON served as text/html, playlists as text/plain), so the decision looks
// at the upstream header, the target URL and the start of the body.
package contenttype

import (
	"bytes"
	"strings"
	"unicode"
)

// Kind is the detected class of an upstream body.
type Kind string

const (
	KindJSON     Kind = "json"
	KindXML      Kind = "xml"
	KindPlaylist Kind = "playlist"
	KindText     Kind = "text"
)

// Content types written for each kind.
const (
	JSON     = "application/json; charset=utf-8"
	XML      = "application/xml; charset=utf-8"
	Playlist = "application/vnd.apple.mpegurl; charset=utf-8"
	Text     = "text/plain; charset=utf-8"
)

// Input carries the three signals a rule can inspect.
type Input struct {
	// UpstreamType is the upstream Content-Type header as sent. Matching is
	// case-sensitive, so "application/x-mpegURL" is not a playlist signal.
	UpstreamType string
	// TargetURL is the decoded URL the body was fetched from.
	TargetURL string
	// Head is the body with leading whitespace and any byte-order mark removed.
	Head []byte
}

// Rule maps a predicate to the content type it selects.
type Rule struct {
	Kind        Kind
	ContentType string
	Match       func(in Input) bool
}

// Result is the outcome of Classify.
type Result struct {
	Kind        Kind
	ContentType string
}

// Rules is evaluated in order and the first match wins. JSON must stay
// ahead of XML and Playlist: a JSON body fetched from an xmltv URL is JSON.
var Rules = []Rule{
	{
		Kind:        KindJSON,
		ContentType: JSON,
		Match: func(in Input) bool {
			return strings.Contains(in.UpstreamType, "json") ||
				strings.Contains(in.TargetURL, "player_api.php") ||
				strings.Contains(in.TargetURL, "panel_api.php") ||
				bytes.HasPrefix(in.Head, []byte("{")) ||
				bytes.HasPrefix(in.Head, []byte("["))
		},
	},
	{
		Kind:        KindXML,
		ContentType: XML,
		Match: func(in Input) bool {
			return strings.Contains(in.UpstreamType, "xml") ||
				strings.Contains(in.TargetURL, "xmltv") ||
				bytes.HasPrefix(in.Head, []byte("<?xml"))
		},
	},
	{
		Kind:        KindPlaylist,
		ContentType: Playlist,
		Match: func(in Input) bool {
			return strings.Contains(in.UpstreamType, "mpegurl") ||
				strings.HasSuffix(in.TargetURL, ".m3u") ||
				strings.HasSuffix(in.TargetURL, ".m3u8") ||
				bytes.HasPrefix(in.Head, []byte("#EXTM3U"))
		},
	},
}

var fallback = Result{Kind: KindText, ContentType: Text}

// Classify returns the first rule in Rules matching the given signals,
// or text/plain when none does.
func Classify(upstreamType, targetURL string, body []byte) Result {
	in := Input{
		UpstreamType: upstreamType,
		TargetURL:    targetURL,
		Head:         trimLeading(body),
	}
	for _, r := range Rules {
		if r.Match(in) {
			return Result{Kind: r.Kind, ContentType: r.ContentType}
		}
	}
	return fallback
}

// trimLeading drops leading Unicode whitespace and U+FEFF.
func trimLeading(body []byte) []byte {
	return bytes.TrimLeftFunc(body, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}

package service

import "regexp"

// credentialPattern matches credential-looking query values. Xtream-style
// panel URLs carry username and password in the query string.
var credentialPattern = regexp.MustCompile(`(?i)((?:username|password|pass|token|api_?key|auth)=)[^&\s"]+`)

// Redact masks credential query values in s, which may be a URL or an error
// message embedding one.
func Redact(s string) string {
	return credentialPattern.ReplaceAllString(s, "${1}[REDACTED]")
}

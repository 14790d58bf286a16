// Package sanitizer cleans untrusted string input before it reaches logs,
// vault lookups, or downstream requests.
//
// The gateway applies Header to every credential and correlation header:
//
//	clientID := sanitizer.Header(r.Header.Get("X-Client-ID"))
//
// Header trims whitespace, removes control characters (blocking CRLF header
// injection), strips HTML-ish fragments, and bounds the value length. The
// lower-level helpers are exported for callers with narrower needs.
package sanitizer

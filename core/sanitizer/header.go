package sanitizer

// Credential and correlation headers arrive from untrusted vendors and are
// echoed into logs, vault paths, and downstream requests, so they are
// sanitized before any component sees them.

const maxHeaderLength = 256

// Header cleans an inbound header value: trims whitespace, removes control
// characters, strips HTML-ish fragments, and bounds the length.
func Header(s string) string {
	s = RemoveControlChars(s)
	s = StripHTML(s)
	return MaxLength(Trim(s), maxHeaderLength)
}

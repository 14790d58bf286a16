// Package middleware provides the HTTP middleware used by both gateway
// binaries: correlation id propagation, structured request logging with
// sensitive-header redaction, panic recovery, and per-client rate
// limiting. All middleware follows the standard func(http.Handler)
// http.Handler shape and composes with chi routers.
package middleware

// Package sapi is the reference downstream payment service. Every
// payment route is gated by the ingress token verifier: signature,
// expiry, audience, issuer, and per-route permission checks, with
// renewal hints surfaced via response header. Payment storage is an
// in-memory reference implementation; real deployments substitute their
// own processing behind the same verification boundary.
package sapi

// Package eapi is the externally facing gateway surface. Vendors call the
// payments endpoints with legacy header credentials or a bearer token;
// the gateway authenticates, mints or reuses an internal token, and
// relays the request to the downstream payment service. The rotation
// control endpoints are operator-scoped and drive the credential
// rotation state machine.
package eapi

// Package audit persists an operational trail of token issuance and
// rotation lifecycle events to PostgreSQL.
//
// Records are strictly metadata: jti, client id, timestamps, rotation
// states. No token values or secret material ever reach the audit
// tables. Writes are best effort and never block authentication or
// rotation progress.
package audit

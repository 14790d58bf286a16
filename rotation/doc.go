// Package rotation coordinates zero-downtime credential rotation.
//
// A rotation moves a client from one secret version to the next through
// a fixed lifecycle: initiated, dual_active, old_deprecated, new_active,
// with failed as the terminal error state. During dual_active and
// old_deprecated both secrets authenticate, so clients can switch at
// their own pace inside the transition window. The Manager owns every
// rotation object and is the only writer of credential records; the
// Scheduler advances rotations whose windows have elapsed.
package rotation

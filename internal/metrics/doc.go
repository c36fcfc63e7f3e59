// Package metrics provides the lock-free counter table shared by all
// engine subsystems. Counters are indexed by MetricID into a fixed array
// of atomics; the increment path never allocates and never takes a lock.
//
// # What this package must NOT do
//
//   - Export anything outside the aegis module (it is re-exported through
//     the root package as type aliases).
//   - Perform I/O. Exposition formats live in metrics/export.
package metrics

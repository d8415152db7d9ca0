// Package batch is the conversion orchestration core: it owns the queue of
// submitted files and drives each one through availability checking,
// stream-copy conversion, and per-item status bookkeeping, strictly in
// submission order. The batch pauses as a whole only when the external tool
// is missing; per-file failures are recorded on the item and processing
// continues.
package batch

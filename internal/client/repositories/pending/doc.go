// Package pending stores writes that are waiting to be delivered to the
// remote API.
//
// Enqueue is an upsert keyed by request id, which is how the synchronizer
// records a bumped retry counter. List returns the queue oldest first
// (enqueued_at, then id). Requests leave the queue only through Remove or
// Clear; there is no cancelled state.
package pending

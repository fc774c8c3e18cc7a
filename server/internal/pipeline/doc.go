// Package pipeline connects the ingestion adapter to everything downstream.
//
// Handle is the adapter callback. For every snapshot it evaluates the
// channel catalog, replaces the store slot, updates metrics, notifies the
// WebSocket hub and mirrors the list to redis, in that order. Calls are
// serialized, so concurrent deliveries never interleave.
//
// Restore warms the store from the redis mirror at startup. The mirrored
// values are re-evaluated against the current catalog rather than trusted
// as-is.
package pipeline

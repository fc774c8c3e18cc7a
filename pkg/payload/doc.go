// Package payload models the raw sensor documents found in the realtime
// database and normalizes them into types.Snapshot.
//
// Three shapes exist, and each is its own variant of the Payload union:
//   - ArrayHistory: per-type arrays indexed by insertion order
//     (dht11[], soil[], cahaya[], ultrasonic[], pir[], peer[]).
//     The latest index is max(len(arrays))-1.
//   - Flattened: one object holding only the latest reading.
//   - PushKeyed: history keyed by store-assigned push keys; only the
//     lexicographically greatest key is read.
//
// Decode(raw) detects the shape from structure and returns the variant.
// A new shape gets a new variant; existing variants never accept extra
// field names.
//
// Canonical(raw) returns a key-order-independent serialization used by the
// ingestion adapters to suppress duplicate deliveries.
package payload

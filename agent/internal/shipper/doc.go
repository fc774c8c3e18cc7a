// Package shipper writes simulated readings to the backing store.
//
// Shipper.Ship() is non-blocking: readings are placed in an in-memory channel
// (default capacity 100). When the buffer is full the oldest entry is evicted
// so the latest reading is always preserved.
//
// Shipper.Run() drains the buffer in order, retrying a failed write with
// truncated exponential backoff (1s→60s, ±25% jitter). Permanent failures
// (400/401/403/404 from the database, or an existing document of a different
// shape) discard the reading instead of retrying.
//
// NewWriter(cfg) picks the Writer for the configured shape:
//   - push:   POST {path}.json, one push-keyed entry per reading
//   - latest: PUT {path}.json with the flattened reading
//   - array:  PATCH {path}.json with dht11/i, soil/i, cahaya/i, ... where i
//     continues after the highest index already stored
//   - mqtt:   publish the flattened reading as JSON at QoS 1
package shipper

// Package cache mirrors the latest evaluated sensor list into redis so a
// restarted dashboard can serve the last known list before the first fetch
// completes.
//
// The list is stored as one JSON Record under a fixed key, optionally with a
// TTL. Load reports ErrMiss when the key is absent and a decode error when
// the stored value is not a Record.
package cache

// Package types defines shared Go types used by both the agent and server.
// These are the canonical in-memory representations of sensor readings and
// their evaluated health, separate from the raw payload shapes stored in the
// realtime database (see package payload).
package types

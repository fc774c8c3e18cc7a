// Package api implements the HTTP REST API for the sensor dashboard.
//
// New(store, catalog) returns an http.Handler that serves:
//
//	GET /api/v1/health         overall status, per-status counts, stale flag
//	GET /api/v1/sensors        evaluated sensors in catalog order, with hints
//	GET /api/v1/sensors/{id}   one sensor; 404 if unknown or nothing received yet
//	GET /api/v1/channels       the static catalog with band edges and mappings
//	GET /api/v1/snapshot       sensors + summary + last_updated + generated_at
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Keep serving the last list when ingestion fails; stale marks its age
//
// BuildSnapshot is shared with the WebSocket hub so both surfaces emit the
// same structure. JSON types are defined in types.go. No external HTTP
// framework is used.
package api

// Package config loads the dashboard configuration from config.yaml
// (the `agent:` key is ignored by the server binary).
//
// Sections:
//   - server: http_port (8080), log_level (info), stale_after (30s),
//     broadcast_interval (5s)
//   - source: mode poll|stream|mqtt, base_url, path (sensorReadings),
//     secret_env (RTDB_SECRET), poll_interval (2s), timeout (10s), mqtt.*
//   - cache: redis_addr (empty disables), password_env, db,
//     key (sensordash:latest), ttl (10m)
//
// Secrets are never read from the file itself: secret_env and password_env
// name environment variables resolved by Secret() and Password().
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reloads on write and hands valid configs to
// onChange; only log_level is applied live by the server binary.
package config

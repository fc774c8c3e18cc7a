// Package config loads and watches the agent configuration file (config.yaml).
//
// Only the `agent:` key is read:
//   - base_url, path, secret_env: the realtime database document written to;
//     Secret() resolves the secret from the environment
//   - shape: push | latest | array | mqtt
//   - interval, buffer_size, timeout, log_level, seed
//   - mqtt: broker, topic, client_id, username, password_env
//
// Load(path) reads the YAML file, applies defaults (2s interval, 100 buffer,
// push shape), then validates required fields per shape.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It re-adds the watch after each
// reload so atomic-save editors (vim, VS Code) keep working.
package config

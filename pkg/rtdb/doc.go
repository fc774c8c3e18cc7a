// Package rtdb is a small client for the REST surface of a Firebase-style
// realtime database.
//
// Every request targets {baseURL}/{path}.json, with ?auth={secret} appended
// when a secret is configured:
//
//	Get(ctx, path)             GET    raw JSON; nil for an absent document
//	Push(ctx, path, v)         POST   returns the store-assigned push key
//	Set(ctx, path, v)          PUT    replaces the document at path
//	Update(ctx, path, fields)  PATCH  multi-path update ("dht11/4": {...})
//	Stream(ctx, path, fn)      GET with Accept: text/event-stream; calls fn
//	                           for every put/patch event until ctx is done
//
// Stream uses github.com/r3labs/sse for the event-stream framing and keeps
// only the database event types: put and patch bodies are decoded into
// Event, keep-alive is ignored, and cancel or auth_revoked end the stream
// with ErrStreamClosed. Reconnecting is left to the caller.
//
// Non-2xx responses are returned as *StatusError. The secret is injected by
// the caller; nothing is compiled in.
package rtdb

// Package source is the ingestion adapter: it obtains raw sensor payloads
// from the backing store, normalizes them, and hands one types.Snapshot per
// genuine data change to a callback.
//
// Three interchangeable implementations sit behind the Source interface:
//
//	poll    GET the document every poll_interval, first poll immediately
//	stream  hold the database event stream open; a put at "/" carries the
//	        whole document, any other event triggers one full GET;
//	        reconnects with exponential backoff
//	mqtt    subscribe to a broker topic; every message body is a payload
//
// All three share dispatcher (dispatch.go), which suppresses payloads whose
// canonical JSON equals the previous one, decodes and normalizes the rest,
// and records the outcome in metrics. Fetch and decode failures are logged
// and produce no callback; the next tick, event or message is the retry.
//
// Factory: New(config.SourceConfig, *metrics.Metrics) returns the Source for
// the configured mode.
package source

// Package metrics exposes dashboard internals in the Prometheus exposition
// format.
//
// Every collector is registered on the Registerer passed to New, so tests
// can use a private registry. A nil *Metrics is valid and records nothing.
package metrics

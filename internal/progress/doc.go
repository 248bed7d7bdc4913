// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces that capture workers use to report run progress. Events are
// dispatched on a background goroutine to pluggable sinks such as Prometheus
// metrics or structured logs.
package progress

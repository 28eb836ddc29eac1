// Package prometheus provides Prometheus exposition for the session
// lifecycle counters.
//
// [NewPrometheusExporter] accepts a [sessionkit.Orchestrator] and exposes an
// [http.Handler] that renders every lifecycle counter in Prometheus text
// exposition format. Counter names are prefixed sessionkit_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate orchestrator state.
package prometheus

// Package prometheus renders the session gateway's metrics in Prometheus
// text exposition format.
//
// [NewPrometheusExporter] accepts a [farmgate.Engine] and exposes an
// [http.Handler]. Counter names are prefixed farmgate_*_total; the single
// histogram is farmgate_revalidate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount
//     the Handler.
//   - Mutate engine state.
package prometheus

// Package exporter serves station telemetry over HTTP.
//
// An Exporter owns a Prometheus registry with the station gauges and the
// codec counters, the latest protocol.State, and a Hub that pushes every
// update to WebSocket subscribers. Routes are served with gin:
//
//	GET /metrics   Prometheus text format
//	GET /snapshot  latest State as JSON, 503 until every field was seen
//	GET /ws        live updates, one JSON Message per update
//	GET /healthz   liveness
//
// Feed updates with Consume (or Observe) and pass Sink to
// device.WithObserver so that per-record decode outcomes are counted.
package exporter

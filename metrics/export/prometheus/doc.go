// Package prometheus exposes gatekeeper engine metrics through a
// client_golang Collector.
//
// The Collector reads an Engine snapshot on every scrape; it holds no state
// of its own. Use [Exporter.Handler] for a ready /metrics handler or register
// the Exporter with an existing prometheus.Registerer.
package prometheus

// Package metrics holds relay's Prometheus collectors.
//
// Collectors are registered on the Registerer passed to New so tests can use
// a private registry. A nil *Metrics is valid and records nothing.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	m.ConnectionOpened("default")
package metrics

// Package httpserver is relay's HTTP surface: the graphql-ws WebSocket
// endpoint of every mounted schema, a JSON API for publishing events and
// reading the journal, live connection listings, the schema catalog,
// health, and Prometheus metrics.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	s := httpserver.New(rt, logger, httpserver.Options{})
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver

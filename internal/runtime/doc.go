// Package runtime wires a single relay instance: the pebble store, the event
// journal, the metrics collectors and one subscription supervisor per
// configured schema. Publish is the entry point for events coming from the
// HTTP and gRPC surfaces.
//
// Open records every configured schema in the catalog, so schemas dropped
// from the config later are still reported by Catalog.
//
// Example:
//
//	rt, err := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	if err != nil { /* handle */ }
//	defer rt.Close()
//	go rt.RunRetention(ctx)
//	rep, _ := rt.Publish(ctx, "default", "fan.speedChanged", json.RawMessage(`{"speed":5}`))
package runtime

// Package pebblestore wraps Pebble for the event journal: an fsync policy,
// atomic batches, range compaction and a MetricsHook for latency and size
// observations.
//
// Usage:
//
//	mode, _ := pebblestore.ParseFsyncMode("interval")
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   mode,
//	    Metrics: metrics.StorageHook{M: m},
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(ctx, b)
//	b.Close()
package pebblestore

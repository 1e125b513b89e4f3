// Package eventlog is relay's append-only journal of published events.
//
// # Overview
//
// Every event accepted for fan-out can be appended to a per-(schema, route)
// log persisted in Pebble. The journal is for inspection and retention only:
// subscriptions are never persisted and nothing is replayed to clients.
// Keys sort lexicographically so scans stay within one route:
//
//	j/{schema}/{route}/m            last assigned sequence
//	j/{schema}/{route}/e/{seq_be8}  entries
//	r/{schema}/{route}              route index (lists journals for sweeps)
//
// Records are stored as: uvarint headerLen | header | payload | crc32c(header|payload).
// The header is the 8-byte big-endian publish time in milliseconds.
//
// Usage
//
//	j := eventlog.NewJournal(db)
//	e, _ := j.Record(ctx, "default", "fan.speedChanged", payload)
//	recent, _ := j.Recent("default", "fan.speedChanged", 20) // newest first
//	n, _ := j.Sweep(ctx, eventlog.Retention{MaxAge: 24 * time.Hour})
package eventlog

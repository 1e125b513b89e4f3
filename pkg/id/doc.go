// Package id provides 128-bit, lexicographically sortable identifiers.
//
// relay uses them for connection ids: they sort by accept time, which keeps
// the connections listing and log lines in arrival order.
//
// An ID is 16 bytes big-endian: [8 bytes unix ms][8 bytes sequence]. The
// Generator never goes backwards; a regressing clock is pinned to the last
// seen millisecond and the sequence keeps increasing.
//
// Usage
//
//	g := id.NewGenerator()
//	connID := g.Next().String() // 32 hex chars
//	parsed, err := id.Parse(connID)
package id

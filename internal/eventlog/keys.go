package eventlog

import (
	"encoding/binary"
)

var (
	sep           = byte('/')
	journalPrefix = []byte("j/")
	routePrefix   = []byte("r/")
	metaSuffix    = []byte("/m")
	entrySeg      = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func journalBase(schema, route string) []byte {
	k := make([]byte, 0, len(schema)+len(route)+24)
	k = append(k, journalPrefix...)
	k = append(k, schema...)
	k = append(k, sep)
	k = append(k, route...)
	return k
}

// KeyLogMeta builds the metadata key holding the last sequence of a route.
func KeyLogMeta(schema, route string) []byte {
	return append(journalBase(schema, route), metaSuffix...)
}

// KeyLogEntry builds an entry key; the big-endian sequence keeps entries ordered.
func KeyLogEntry(schema, route string, seq uint64) []byte {
	k := append(journalBase(schema, route), entrySeg...)
	return appendBE8(k, seq)
}

// KeyRoute builds the route index key.
func KeyRoute(schema, route string) []byte {
	k := make([]byte, 0, len(schema)+len(route)+4)
	k = append(k, routePrefix...)
	k = append(k, schema...)
	k = append(k, sep)
	return append(k, route...)
}

// KeyRoutePrefix returns the prefix of every route index key of schema.
func KeyRoutePrefix(schema string) []byte {
	k := make([]byte, 0, len(schema)+3)
	k = append(k, routePrefix...)
	k = append(k, schema...)
	return append(k, sep)
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

package eventlog

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/relay/internal/storage/pebble"
)

// AppendRecord is one record to append.
type AppendRecord struct {
	Header  []byte
	Payload []byte
}

// Log is the append-only log of one (schema, route).
type Log struct {
	db     *pebblestore.DB
	schema string
	route  string

	mu      sync.Mutex
	lastSeq uint64
	indexed bool
}

// OpenLog loads the last sequence of (schema, route) from metadata, if any.
func OpenLog(db *pebblestore.DB, schema, route string) (*Log, error) {
	l := &Log{db: db, schema: schema, route: route}
	meta, err := db.Get(KeyLogMeta(schema, route))
	switch {
	case err == nil && len(meta) >= 8:
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
		l.indexed = true
	case err != nil && !errors.Is(err, pebble.ErrNotFound):
		return nil, err
	}
	return l, nil
}

// Append writes recs in one atomic batch and returns their sequences.
func (l *Log) Append(ctx context.Context, recs []AppendRecord) ([]uint64, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	next := l.lastSeq
	seqs := make([]uint64, len(recs))
	for i, r := range recs {
		next++
		if err := b.Set(KeyLogEntry(l.schema, l.route, next), EncodeRecord(r.Header, r.Payload), nil); err != nil {
			return nil, err
		}
		seqs[i] = next
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], next)
	if err := b.Set(KeyLogMeta(l.schema, l.route), meta[:], nil); err != nil {
		return nil, err
	}
	if !l.indexed {
		if err := b.Set(KeyRoute(l.schema, l.route), nil, nil); err != nil {
			return nil, err
		}
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	l.lastSeq = next
	l.indexed = true
	return seqs, nil
}

// LastSeq returns the last assigned sequence.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

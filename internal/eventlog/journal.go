package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/relay/internal/storage/pebble"
)

// Entry is one journaled event.
type Entry struct {
	Schema      string          `json:"schema"`
	Route       string          `json:"route"`
	Seq         uint64          `json:"seq"`
	PublishedAt time.Time       `json:"publishedAt"`
	Payload     json.RawMessage `json:"payload"`
}

// Retention bounds what Sweep keeps. Zero values disable the bound.
type Retention struct {
	MaxAge   time.Duration
	MaxBytes int64
	// Compact reclaims the space of trimmed routes right away.
	Compact bool
}

// Journal keeps one Log per (schema, route) and opens them lazily.
type Journal struct {
	db  *pebblestore.DB
	now func() time.Time

	mu   sync.Mutex
	logs map[string]*Log
}

// NewJournal returns a journal over db.
func NewJournal(db *pebblestore.DB) *Journal {
	return &Journal{db: db, now: time.Now, logs: make(map[string]*Log)}
}

func (j *Journal) log(schema, route string) (*Log, error) {
	key := schema + "\x00" + route
	j.mu.Lock()
	defer j.mu.Unlock()
	if l, ok := j.logs[key]; ok {
		return l, nil
	}
	l, err := OpenLog(j.db, schema, route)
	if err != nil {
		return nil, err
	}
	j.logs[key] = l
	return l, nil
}

// Record appends payload to the journal of (schema, route).
func (j *Journal) Record(ctx context.Context, schema, route string, payload json.RawMessage) (Entry, error) {
	l, err := j.log(schema, route)
	if err != nil {
		return Entry{}, err
	}
	now := j.now()
	seqs, err := l.Append(ctx, []AppendRecord{{Header: TimestampHeader(now.UnixMilli()), Payload: payload}})
	if err != nil {
		return Entry{}, err
	}
	return Entry{Schema: schema, Route: route, Seq: seqs[0], PublishedAt: time.UnixMilli(now.UnixMilli()), Payload: payload}, nil
}

// Recent returns up to limit entries of (schema, route), newest first.
func (j *Journal) Recent(schema, route string, limit int) ([]Entry, error) {
	l, err := j.log(schema, route)
	if err != nil {
		return nil, err
	}
	items, _, err := l.Read(ReadOptions{Reverse: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		e := Entry{Schema: schema, Route: route, Seq: it.Seq, Payload: it.Payload}
		if ms, ok := HeaderTimestamp(it.Header); ok {
			e.PublishedAt = time.UnixMilli(ms)
		}
		out = append(out, e)
	}
	return out, nil
}

// Routes lists the routes of schema that have a journal.
func (j *Journal) Routes(schema string) ([]string, error) {
	var out []string
	err := j.scanRoutes(KeyRoutePrefix(schema), func(s, r string) {
		out = append(out, r)
	})
	return out, err
}

func (j *Journal) scanRoutes(prefix []byte, fn func(schema, route string)) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return err
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		rest := iter.Key()[len(routePrefix):]
		i := bytes.IndexByte(rest, sep)
		if i < 0 {
			continue
		}
		fn(string(rest[:i]), string(rest[i+1:]))
	}
	return iter.Error()
}

// Sweep applies r to every journal and returns the number of entries deleted.
func (j *Journal) Sweep(ctx context.Context, r Retention) (int, error) {
	type pair struct{ schema, route string }
	var all []pair
	if err := j.scanRoutes(routePrefix, func(s, rt string) { all = append(all, pair{s, rt}) }); err != nil {
		return 0, err
	}
	cutoff := j.now().Add(-r.MaxAge).UnixMilli()
	total := 0
	for _, p := range all {
		l, err := j.log(p.schema, p.route)
		if err != nil {
			return total, err
		}
		deleted := 0
		if r.MaxAge > 0 {
			n, err := l.TrimOlderThan(ctx, cutoff, 0)
			deleted += n
			if err != nil {
				return total + deleted, err
			}
		}
		if r.MaxBytes > 0 {
			n, err := l.TrimToMaxBytes(ctx, r.MaxBytes, 0)
			deleted += n
			if err != nil {
				return total + deleted, err
			}
		}
		total += deleted
		if deleted > 0 && r.Compact {
			if err := l.Compact(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

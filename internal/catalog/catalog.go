package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/relay/internal/storage/pebble"
)

// Meta is the persisted record of a schema this data directory has served.
type Meta struct {
	Name   string   `json:"name"`
	Route  string   `json:"route,omitempty"`
	Fields []string `json:"fields,omitempty"`
	// CreatedAtMs is when the schema was first opened; it never changes.
	CreatedAtMs int64 `json:"createdAtMs"`
	// OpenedAtMs is the most recent open.
	OpenedAtMs int64 `json:"openedAtMs"`
}

var (
	metaPrefix = []byte("schemameta/")
	metaEnd    = []byte("schemameta0")
)

// metaKey builds the metadata key for a schema.
func metaKey(name string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(name))
	k = append(k, metaPrefix...)
	k = append(k, name...)
	return k
}

// Ensure records that name is being served with route and fields. The first
// call creates the record; later calls keep CreatedAtMs and refresh the rest.
// A corrupted record is rewritten.
func Ensure(db *pebblestore.DB, name, route string, fields []string, now time.Time) (Meta, error) {
	m := Meta{Name: name, CreatedAtMs: now.UnixMilli()}
	if prev, err := Get(db, name); err == nil {
		m.CreatedAtMs = prev.CreatedAtMs
	} else if !errors.Is(err, pebblestore.ErrNotFound) && !isCorrupt(err) {
		return Meta{}, err
	}
	m.Route = route
	m.Fields = slices.Clone(fields)
	m.OpenedAtMs = now.UnixMilli()
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(metaKey(name), b); err != nil {
		return Meta{}, err
	}
	return m, nil
}

type corruptError struct{ err error }

func (e corruptError) Error() string { return "catalog: corrupt record: " + e.err.Error() }
func (e corruptError) Unwrap() error { return e.err }

func isCorrupt(err error) bool {
	var ce corruptError
	return errors.As(err, &ce)
}

// Get reads the record for name. It returns pebblestore.ErrNotFound when the
// schema was never opened.
func Get(db *pebblestore.DB, name string) (Meta, error) {
	b, err := db.Get(metaKey(name))
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, corruptError{err}
	}
	return m, nil
}

// List returns every recorded schema ordered by name, including schemas no
// longer configured.
func List(db *pebblestore.DB) ([]Meta, error) {
	it, err := db.NewIter(&pebble.IterOptions{LowerBound: metaPrefix, UpperBound: metaEnd})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []Meta
	for ok := it.First(); ok; ok = it.Next() {
		var m Meta
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			return nil, fmt.Errorf("catalog: decode %q: %w", it.Key(), err)
		}
		out = append(out, m)
	}
	return out, it.Error()
}

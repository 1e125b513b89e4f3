package pebblestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
)

// FsyncMode defines durability behavior for journal writes.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs the WAL on every committed batch.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs within FsyncInterval.
	FsyncModeInterval
	// FsyncModeNever never forces a WAL sync from the application.
	FsyncModeNever
)

const defaultSyncInterval = 5 * time.Millisecond

// ParseFsyncMode maps always|interval|never to a mode. Empty means interval.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always":
		return FsyncModeAlways, nil
	case "", "interval":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	}
	return FsyncModeUnspecified, fmt.Errorf("invalid fsync mode %q; use always|interval|never", s)
}

func (m FsyncMode) String() string {
	switch m {
	case FsyncModeAlways:
		return "always"
	case FsyncModeInterval:
		return "interval"
	case FsyncModeNever:
		return "never"
	}
	return "unspecified"
}

// Options configures the store.
type Options struct {
	// DataDir is the Pebble directory. Required.
	DataDir string
	Fsync   FsyncMode
	// FsyncInterval is the group-commit window for FsyncModeInterval.
	FsyncInterval time.Duration
	// PebbleOptions overrides Pebble tuning. Nil uses Pebble's defaults.
	PebbleOptions *pebble.Options
	// Metrics observes read, write and commit latencies. Optional.
	Metrics MetricsHook
}

// MetricsHook receives storage observations.
type MetricsHook interface {
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
}

type discardMetrics struct{}

func (discardMetrics) ObserveWrite(time.Duration, int)            {}
func (discardMetrics) ObserveRead(time.Duration, int)             {}
func (discardMetrics) ObserveBatchCommit(time.Duration, int, int) {}

// DB is the event journal's Pebble handle. Every write goes through a batch
// committed under the store's fsync mode.
type DB struct {
	pdb     *pebble.DB
	mode    FsyncMode
	commit  *pebble.WriteOptions
	metrics MetricsHook
}

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = pebble.ErrNotFound

// Open creates or opens the store at opts.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	mode, window := resolveFsync(opts.Fsync, opts.FsyncInterval)
	if window > 0 {
		po.WALMinSyncInterval = func() time.Duration { return window }
	}
	pdb, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", opts.DataDir, err)
	}
	db := &DB{pdb: pdb, mode: mode, commit: pebble.NoSync, metrics: opts.Metrics}
	if mode == FsyncModeAlways {
		db.commit = pebble.Sync
	}
	if db.metrics == nil {
		db.metrics = discardMetrics{}
	}
	return db, nil
}

// resolveFsync returns the effective mode and, for interval mode, the WAL
// group-commit window. Unknown modes behave as interval.
func resolveFsync(mode FsyncMode, interval time.Duration) (FsyncMode, time.Duration) {
	switch mode {
	case FsyncModeAlways, FsyncModeNever:
		return mode, 0
	}
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return FsyncModeInterval, interval
}

// Close closes the store. It is safe on a nil DB.
func (db *DB) Close() error {
	if db == nil || db.pdb == nil {
		return nil
	}
	return db.pdb.Close()
}

// Fsync reports the effective fsync mode.
func (db *DB) Fsync() FsyncMode { return db.mode }

// NewBatch creates a batch for atomic multi-key updates.
func (db *DB) NewBatch() *pebble.Batch {
	return db.pdb.NewBatch()
}

// CommitBatch commits b with the configured fsync policy.
func (db *DB) CommitBatch(ctx context.Context, b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebble: nil batch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start, ops, size := time.Now(), int(b.Count()), b.Len()
	err := b.Commit(db.commit)
	db.metrics.ObserveBatchCommit(time.Since(start), ops, size)
	return err
}

// Set writes a single key with the configured fsync policy.
func (db *DB) Set(key, value []byte) error {
	start := time.Now()
	if err := db.single(func(b *pebble.Batch) error { return b.Set(key, value, nil) }); err != nil {
		return err
	}
	db.metrics.ObserveWrite(time.Since(start), len(key)+len(value))
	return nil
}

// Delete removes a single key with the configured fsync policy.
func (db *DB) Delete(key []byte) error {
	return db.single(func(b *pebble.Batch) error { return b.Delete(key, nil) })
}

func (db *DB) single(op func(*pebble.Batch) error) error {
	b := db.pdb.NewBatch()
	defer b.Close()
	if err := op(b); err != nil {
		return err
	}
	return db.CommitBatch(context.Background(), b)
}

// Get returns a copy of the value stored at key, or ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := db.pdb.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	db.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

// NewIter creates a raw Pebble iterator. The caller closes it.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.pdb.NewIter(opts)
}

// CompactRange compacts the key range [start, end).
func (db *DB) CompactRange(start, end []byte) error {
	return db.pdb.Compact(start, end, true)
}

// Ping checks that the store can serve an iterator.
func (db *DB) Ping() error {
	if db == nil || db.pdb == nil {
		return errors.New("pebble: db not open")
	}
	it, err := db.pdb.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

package eventlog

import (
	"context"

	"github.com/cockroachdb/pebble"
)

const defaultTrimBatch = 1024

// TrimOlderThan deletes entries published before cutoffMs, oldest first, in
// batches of batchLimit keys. Entries are time-ordered, so the scan stops at
// the first entry at or after the cutoff. Returns the number deleted.
func (l *Log) TrimOlderThan(ctx context.Context, cutoffMs int64, batchLimit int) (int, error) {
	return l.trim(ctx, batchLimit, func(it *pebble.Iterator) bool {
		dec, ok := DecodeRecord(it.Value())
		if !ok {
			// Unreadable entries are dropped with the expired ones.
			return true
		}
		ms, ok := HeaderTimestamp(dec.Header)
		return ok && ms < cutoffMs
	})
}

// TrimToMaxBytes deletes the oldest entries until the stored value bytes of
// the route fit within maxBytes. A non-positive maxBytes disables the trim.
func (l *Log) TrimToMaxBytes(ctx context.Context, maxBytes int64, batchLimit int) (int, error) {
	if maxBytes <= 0 {
		return 0, nil
	}
	total, err := l.Size()
	if err != nil || total <= maxBytes {
		return 0, err
	}
	return l.trim(ctx, batchLimit, func(it *pebble.Iterator) bool {
		if total <= maxBytes {
			return false
		}
		total -= int64(len(it.Value()))
		return true
	})
}

// Compact asks the store to compact the route's entry range.
func (l *Log) Compact() error {
	low, high := l.bounds()
	return l.db.CompactRange(low, high)
}

// Size returns the total stored value bytes of the route.
func (l *Log) Size() (int64, error) {
	low, high := l.bounds()
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	var total int64
	for ok := iter.First(); ok; ok = iter.Next() {
		total += int64(len(iter.Value()))
	}
	return total, iter.Error()
}

// trim deletes entries from the oldest while expired reports true.
func (l *Log) trim(ctx context.Context, batchLimit int, expired func(*pebble.Iterator) bool) (int, error) {
	if batchLimit <= 0 {
		batchLimit = defaultTrimBatch
	}
	low, high := l.bounds()
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	deleted := 0
	ok := iter.First()
	for ok {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		b := l.db.NewBatch()
		n := 0
		for ok && n < batchLimit {
			if !expired(iter) {
				ok = false
				break
			}
			if err := b.Delete(iter.Key(), nil); err != nil {
				b.Close()
				return deleted, err
			}
			n++
			ok = iter.Next()
		}
		if n > 0 {
			if err := l.db.CommitBatch(ctx, b); err != nil {
				b.Close()
				return deleted, err
			}
			deleted += n
		}
		b.Close()
	}
	return deleted, iter.Error()
}

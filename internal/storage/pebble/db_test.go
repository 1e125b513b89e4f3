package pebblestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder tallies what the store reports through MetricsHook.
type recorder struct {
	mu                  sync.Mutex
	setBytes, getBytes  int
	commits, ops, bytes int
}

func (r *recorder) ObserveWrite(_ time.Duration, n int) {
	r.mu.Lock()
	r.setBytes += n
	r.mu.Unlock()
}

func (r *recorder) ObserveRead(_ time.Duration, n int) {
	r.mu.Lock()
	r.getBytes += n
	r.mu.Unlock()
}

func (r *recorder) ObserveBatchCommit(_ time.Duration, ops, n int) {
	r.mu.Lock()
	r.commits++
	r.ops += ops
	r.bytes += n
	r.mu.Unlock()
}

func openStore(t *testing.T, mode FsyncMode) (*DB, *recorder) {
	t.Helper()
	rec := &recorder{}
	db, err := Open(Options{DataDir: t.TempDir(), Fsync: mode, FsyncInterval: time.Millisecond, Metrics: rec})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, rec
}

func TestOpenRequiresDataDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestParseFsyncMode(t *testing.T) {
	for in, want := range map[string]FsyncMode{
		"always":   FsyncModeAlways,
		"Interval": FsyncModeInterval,
		"":         FsyncModeInterval,
		" never ":  FsyncModeNever,
	} {
		got, err := ParseFsyncMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFsyncMode("sometimes")
	assert.Error(t, err)
}

func TestResolveFsync(t *testing.T) {
	cases := []struct {
		mode     FsyncMode
		interval time.Duration
		wantMode FsyncMode
		wantWin  time.Duration
	}{
		{FsyncModeAlways, time.Second, FsyncModeAlways, 0},
		{FsyncModeNever, 0, FsyncModeNever, 0},
		{FsyncModeInterval, 0, FsyncModeInterval, defaultSyncInterval},
		{FsyncModeInterval, 9 * time.Millisecond, FsyncModeInterval, 9 * time.Millisecond},
		{FsyncModeUnspecified, 0, FsyncModeInterval, defaultSyncInterval},
	}
	for _, c := range cases {
		mode, win := resolveFsync(c.mode, c.interval)
		assert.Equal(t, c.wantMode, mode, "mode for %v/%v", c.mode, c.interval)
		assert.Equal(t, c.wantWin, win, "window for %v/%v", c.mode, c.interval)
	}
}

func TestJournalKeyLifecycle(t *testing.T) {
	for _, mode := range []FsyncMode{FsyncModeAlways, FsyncModeInterval, FsyncModeNever} {
		t.Run(mode.String(), func(t *testing.T) {
			db, rec := openStore(t, mode)
			assert.Equal(t, mode, db.Fsync())

			key, event := []byte("j/default/fan.speedChanged/e/1"), []byte(`{"rpm":500}`)
			require.NoError(t, db.Set(key, event))
			got, err := db.Get(key)
			require.NoError(t, err)
			assert.Equal(t, event, got)
			assert.Equal(t, len(key)+len(event), rec.setBytes)
			assert.Equal(t, len(event), rec.getBytes)

			require.NoError(t, db.Delete(key))
			_, err = db.Get(key)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCommitBatchReportsOps(t *testing.T) {
	db, rec := openStore(t, FsyncModeInterval)
	b := db.NewBatch()
	defer b.Close()
	for _, k := range []string{"j/default/r/e/1", "j/default/r/e/2", "j/default/r/seq"} {
		require.NoError(t, b.Set([]byte(k), []byte("x"), nil))
	}
	require.NoError(t, db.CommitBatch(context.Background(), b))
	assert.Equal(t, 1, rec.commits)
	assert.Equal(t, 3, rec.ops)
	assert.NotZero(t, rec.bytes)

	assert.Error(t, db.CommitBatch(context.Background(), nil), "nil batch")
}

func TestCancelledCommitIsNotApplied(t *testing.T) {
	db, rec := openStore(t, FsyncModeInterval)
	b := db.NewBatch()
	defer b.Close()
	require.NoError(t, b.Set([]byte("k"), []byte("v"), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, db.CommitBatch(ctx, b), context.Canceled)
	_, err := db.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrNotFound, "cancelled batch was applied")
	assert.Zero(t, rec.commits)
}

func TestPrefixScanCompactAndPing(t *testing.T) {
	db, _ := openStore(t, FsyncModeNever)
	for _, k := range []string{"j/default/a", "j/default/b", "j/other/c"} {
		require.NoError(t, db.Set([]byte(k), nil))
	}
	it, err := db.NewIter(&pebble.IterOptions{LowerBound: []byte("j/default/"), UpperBound: []byte("j/default0")})
	require.NoError(t, err)
	var keys []string
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Close())
	assert.Equal(t, []string{"j/default/a", "j/default/b"}, keys)

	require.NoError(t, db.CompactRange([]byte("j/"), []byte("j0")))
	require.NoError(t, db.Ping())
	var closed *DB
	assert.Error(t, closed.Ping())
	assert.NoError(t, closed.Close())
}

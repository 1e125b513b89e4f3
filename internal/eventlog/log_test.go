package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pebblestore "github.com/rzbill/relay/internal/storage/pebble"
)

func openTestDB(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	require.NoError(t, err)
	return db
}

func newTestLog(t *testing.T) *Log {
	t.Helper()
	db := openTestDB(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	l, err := OpenLog(db, "default", "fan.speedChanged")
	require.NoError(t, err)
	return l
}

func TestAppendAssignsSequential(t *testing.T) {
	l := newTestLog(t)
	seqs, err := l.Append(context.Background(), []AppendRecord{{Payload: []byte("p1")}, {Payload: []byte("p2")}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, seqs)
	assert.Equal(t, uint64(2), l.LastSeq())
}

func TestAppendDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)
	l, err := OpenLog(db, "default", "door.opened")
	require.NoError(t, err)
	seqs, err := l.Append(context.Background(), []AppendRecord{{Payload: []byte("x")}})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2 := openTestDB(t, dir)
	t.Cleanup(func() { _ = db2.Close() })
	l2, err := OpenLog(db2, "default", "door.opened")
	require.NoError(t, err)
	seqs2, err := l2.Append(context.Background(), []AppendRecord{{Payload: []byte("y")}})
	require.NoError(t, err)
	assert.Equal(t, seqs[0]+1, seqs2[0], "sequence must continue after reopen")
}

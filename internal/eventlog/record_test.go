package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundtrip(t *testing.T) {
	header := TimestampHeader(1_700_000_000_000)
	payload := []byte(`{"speed":5}`)
	dec, ok := DecodeRecord(EncodeRecord(header, payload))
	require.True(t, ok)
	ms, ok := HeaderTimestamp(dec.Header)
	require.True(t, ok)
	assert.Equal(t, int64(1_700_000_000_000), ms)
	assert.Equal(t, payload, dec.Payload)
}

func TestRecordRejectsCorruption(t *testing.T) {
	rec := EncodeRecord([]byte("x"), []byte("y"))
	flipped := append([]byte(nil), rec...)
	flipped[len(flipped)-1] ^= 0xFF
	_, ok := DecodeRecord(flipped)
	assert.False(t, ok, "crc must catch a flipped byte")
	_, ok = DecodeRecord(rec[:3])
	assert.False(t, ok, "truncated record must not decode")
	_, ok = HeaderTimestamp([]byte{1, 2})
	assert.False(t, ok, "short header must not yield a timestamp")
}

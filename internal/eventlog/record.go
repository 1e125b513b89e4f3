package eventlog

import (
	"encoding/binary"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord frames header and payload with a length prefix and a crc32c trailer.
func EncodeRecord(header, payload []byte) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(header)))
	out := make([]byte, 0, n+len(header)+len(payload)+4)
	out = append(out, lenBuf[:n]...)
	out = append(out, header...)
	out = append(out, payload...)
	return binary.BigEndian.AppendUint32(out, checksum(header, payload))
}

// Decoded is a verified record.
type Decoded struct {
	Header  []byte
	Payload []byte
}

// DecodeRecord verifies and splits a record. Corrupt or truncated input returns false.
func DecodeRecord(b []byte) (Decoded, bool) {
	if len(b) < 1+4 {
		return Decoded{}, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || len(b)-n < 4 || uint64(len(b)-n-4) < hlen {
		return Decoded{}, false
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]
	if binary.BigEndian.Uint32(b[len(b)-4:]) != checksum(header, payload) {
		return Decoded{}, false
	}
	return Decoded{Header: append([]byte(nil), header...), Payload: append([]byte(nil), payload...)}, true
}

func checksum(header, payload []byte) uint32 {
	crc := crc32.Update(0, castagnoli, header)
	return crc32.Update(crc, castagnoli, payload)
}

// TimestampHeader encodes a publish time (ms) as a record header.
func TimestampHeader(ms int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(ms))
}

// HeaderTimestamp extracts the publish time written by TimestampHeader.
func HeaderTimestamp(header []byte) (int64, bool) {
	if len(header) < 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(header[:8])), true
}

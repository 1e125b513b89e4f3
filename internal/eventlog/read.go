package eventlog

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
)

// Token is a read position: the entry sequence, 8 bytes big-endian.
type Token [8]byte

// TokenFromSeq builds a Token positioned at seq.
func TokenFromSeq(seq uint64) Token {
	var t Token
	binary.BigEndian.PutUint64(t[:], seq)
	return t
}

// Seq returns the sequence the token points at.
func (t Token) Seq() uint64 { return binary.BigEndian.Uint64(t[:]) }

// ReadOptions controls Read. A zero Start begins at the first entry (or the
// last one when Reverse is set).
type ReadOptions struct {
	Start   Token
	Limit   int
	Reverse bool
}

// Item is one decoded entry.
type Item struct {
	Seq     uint64
	Header  []byte
	Payload []byte
}

func (l *Log) bounds() (low, high []byte) {
	low = KeyLogEntry(l.schema, l.route, 0)
	high = append(KeyLogEntry(l.schema, l.route, ^uint64(0)), 0x00)
	return low, high
}

// Read returns up to Limit items from Start (inclusive) and the token of the
// next unread entry (zero when the scan reached the end).
func (l *Log) Read(opts ReadOptions) ([]Item, Token, error) {
	low, high := l.bounds()
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, Token{}, err
	}
	defer iter.Close()

	startSeq := opts.Start.Seq()
	var ok bool
	switch {
	case opts.Reverse && startSeq == 0:
		ok = iter.Last()
	case opts.Reverse:
		ok = iter.SeekLT(KeyLogEntry(l.schema, l.route, startSeq+1))
	case startSeq == 0:
		ok = iter.First()
	default:
		ok = iter.SeekGE(KeyLogEntry(l.schema, l.route, startSeq))
	}

	seqAt := func() uint64 { k := iter.Key(); return binary.BigEndian.Uint64(k[len(k)-8:]) }
	items := make([]Item, 0, max(1, opts.Limit))
	for ok && (opts.Limit <= 0 || len(items) < opts.Limit) {
		if dec, valid := DecodeRecord(iter.Value()); valid {
			items = append(items, Item{Seq: seqAt(), Header: dec.Header, Payload: dec.Payload})
		}
		if opts.Reverse {
			ok = iter.Prev()
		} else {
			ok = iter.Next()
		}
	}
	var next Token
	if ok {
		next = TokenFromSeq(seqAt())
	}
	return items, next, iter.Error()
}

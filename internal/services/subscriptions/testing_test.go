package subsvc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/relay/internal/protocol"
	"github.com/rzbill/relay/internal/query"
	logpkg "github.com/rzbill/relay/pkg/log"
)

// fakeTransport feeds client messages from in and records every write.
type fakeTransport struct {
	in        chan []byte
	writes    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	reason    atomic.Pointer[string]

	failWrites atomic.Bool
	readErr    atomic.Pointer[error]
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 64),
		writes: make(chan []byte, 4096),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	if p := f.readErr.Load(); p != nil {
		return nil, *p
	}
	select {
	case b, ok := <-f.in:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeTransport) Write(_ context.Context, data []byte) error {
	if f.failWrites.Load() {
		return errors.New("broken pipe")
	}
	f.writes <- append([]byte(nil), data...)
	return nil
}

func (f *fakeTransport) Close(reason string) error {
	f.closeOnce.Do(func() {
		f.reason.Store(&reason)
		close(f.closed)
	})
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return "test" }

func (f *fakeTransport) send(t *testing.T, m protocol.Message) {
	t.Helper()
	raw, err := protocol.Encode(m)
	require.NoError(t, err)
	f.in <- raw
}

func (f *fakeTransport) sendRaw(raw string) { f.in <- []byte(raw) }

// hangUp simulates the client closing the socket.
func (f *fakeTransport) hangUp() { close(f.in) }

func (f *fakeTransport) next(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case raw := <-f.writes:
		m, err := protocol.Decode(raw)
		require.NoError(t, err, string(raw))
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a message")
		return protocol.Message{}
	}
}

func (f *fakeTransport) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case raw := <-f.writes:
		t.Fatalf("unexpected message %s", raw)
	case <-time.After(d):
	}
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// stubEngine routes on the query text and uses it as the plan. Plans named
// "broken" fail and plans named "quiet" filter everything.
func stubEngine() query.Engine {
	return query.Funcs{
		Compile: func(_ context.Context, req query.Request) (query.Compiled, error) {
			if req.Query == "" || req.Query == "invalid" {
				return query.Compiled{}, &query.ValidationError{Reason: "cannot subscribe to " + req.Query}
			}
			return query.Compiled{Route: req.Query, Plan: req.Query}, nil
		},
		Execute: func(_ context.Context, plan any, payload json.RawMessage) (json.RawMessage, error) {
			switch plan {
			case "broken":
				return nil, &query.ExecutionError{Route: "broken", Err: errors.New("resolver failed")}
			case "quiet":
				return nil, query.ErrSkip
			}
			return payload, nil
		},
	}
}

func quietLogger() logpkg.Logger {
	return logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel), logpkg.WithOutput(logpkg.NullOutput{}))
}

func newTestSupervisor(t *testing.T, limits Limits) *Supervisor {
	t.Helper()
	return New("test", stubEngine(), WithLogger(quietLogger()), WithLimits(limits))
}

type served struct {
	ft   *fakeTransport
	conn *Connection
	errc chan error
}

func serve(t *testing.T, sup *Supervisor) *served {
	t.Helper()
	ft := newFakeTransport()
	c := sup.NewConnection(ft)
	s := &served{ft: ft, conn: c, errc: make(chan error, 1)}
	go func() { s.errc <- c.Serve(context.Background()) }()
	require.Eventually(t, func() bool {
		_, ok := sup.Connection(c.ID())
		return ok
	}, time.Second, time.Millisecond)
	return s
}

func (s *served) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-s.errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return")
		return nil
	}
}

// initialise sends connection_init and consumes ack + ka.
func (s *served) initialise(t *testing.T) {
	t.Helper()
	s.ft.send(t, protocol.Init(nil))
	require.Equal(t, protocol.KindConnectionAck, s.ft.next(t).Kind)
	require.Equal(t, protocol.KindConnectionKeepAlive, s.ft.next(t).Kind)
}

func noKeepAlive() Limits {
	l := DefaultLimits()
	l.KeepAlive = 0
	return l
}

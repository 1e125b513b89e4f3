package subsvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/relay/internal/protocol"
	"github.com/rzbill/relay/internal/query"
	"github.com/rzbill/relay/internal/registry"
	logpkg "github.com/rzbill/relay/pkg/log"
)

// Connection runs the protocol for one transport. Create it with
// Supervisor.NewConnection and run it with Serve.
type Connection struct {
	id         string
	sup        *Supervisor
	transport  Transport
	logger     logpkg.Logger
	limits     Limits
	acceptedAt time.Time

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	cause  atomic.Pointer[string]

	// owned mirrors this connection's bucket in the registry. It is written by
	// the receive loop and by teardown only.
	ownedMu sync.Mutex
	owned   map[string]struct{}

	// sendMu orders Enqueue against the writer's final flush: teardown sets
	// sendClosed under the write lock before closing is closed.
	sendMu      sync.RWMutex
	sendClosed  bool
	out         chan protocol.Message
	closing     chan struct{}
	writerDone  chan struct{}
	writeFailed atomic.Bool

	kaMu      sync.Mutex
	kaStop    chan struct{}
	kaStopped bool
	kaWG      sync.WaitGroup
	terminate atomic.Bool

	teardownOnce sync.Once
	done         chan struct{}
}

func newConnection(sup *Supervisor, t Transport, connID string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:         connID,
		sup:        sup,
		transport:  t,
		limits:     sup.limits,
		acceptedAt: time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		owned:      make(map[string]struct{}),
		out:        make(chan protocol.Message, sup.limits.SendBuffer),
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
		kaStop:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.logger = sup.logger.With(logpkg.Str("conn_id", connID), logpkg.Str("remote", t.RemoteAddr()))
	c.state.Store(int32(StateConnecting))
	go c.writeLoop()
	return c
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// State returns the current protocol state.
func (c *Connection) State() State { return State(c.state.Load()) }

// Done is closed once teardown has finished.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Accept registers the connection with its supervisor. No message is sent.
func (c *Connection) Accept() error {
	if err := c.sup.RegisterConnection(c); err != nil {
		c.teardown(CauseShutdown)
		return err
	}
	c.logger.Debug("connection accepted")
	return nil
}

// Serve accepts the connection and runs its receive loop until the transport
// closes, the client terminates, or ctx is cancelled. Teardown has completed
// when Serve returns. A clean close returns nil.
//
// Teardown always closes the transport, which is what unblocks a pending
// Read; transports need not honour cancellation of the read context.
func (c *Connection) Serve(ctx context.Context) error {
	if err := c.Accept(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { c.teardown(CauseShutdown) })
	defer stop()

	for {
		raw, err := c.transport.Read(c.ctx)
		if err != nil {
			cause, ret := c.classifyReadError(err)
			c.teardown(cause)
			return ret
		}
		c.onMessageReceived(raw)
		if c.terminate.Load() {
			c.teardown(CauseTerminate)
			return nil
		}
	}
}

func (c *Connection) classifyReadError(err error) (string, error) {
	switch {
	case c.ctx.Err() != nil:
		// Teardown already started elsewhere and closed the transport.
		return CauseShutdown, nil
	case errors.Is(err, io.EOF):
		return CauseClientClose, nil
	case errors.Is(err, ErrFraming):
		return CauseFraming, err
	default:
		return CauseTransportError, err
	}
}

// Close tears the connection down from outside and waits for it to finish.
func (c *Connection) Close() {
	c.teardown(CauseShutdown)
}

func (c *Connection) onMessageReceived(raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		c.sup.metrics.MessageReceived(c.sup.schema, "malformed")
		c.logger.Debug("malformed message", logpkg.Err(err))
		_ = c.Enqueue(protocol.ConnectionError(err.Error()))
		return
	}
	c.sup.metrics.MessageReceived(c.sup.schema, msg.Kind.String())
	c.logger.Debug("message received", logpkg.Str("type", msg.Name()), logpkg.Str("id", msg.ID))

	if msg.Kind == protocol.KindConnectionInit {
		c.handleInit()
		return
	}
	if msg.Kind.ClientToServer() {
		if err := msg.Validate(); err != nil {
			_ = c.Enqueue(protocol.ConnectionError(err.Error()))
			return
		}
	}
	for _, reply := range Dispatch(msg.Kind)(c.ctx, c, msg) {
		if err := c.Enqueue(reply); err != nil {
			return
		}
	}
}

func (c *Connection) handleInit() {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateAcknowledged)) {
		_ = c.Enqueue(protocol.ConnectionError("connection already initialised"))
		return
	}
	if c.Enqueue(protocol.Ack()) != nil || c.Enqueue(protocol.KeepAlive()) != nil {
		return
	}
	c.startKeepAlive()
	c.logger.Debug("connection acknowledged")
}

// Enqueue hands msg to the connection's writer. Messages are written in the
// order they are enqueued. It blocks while the outbound queue is full and
// returns ErrClosed once teardown has begun. A nil return means the writer
// will attempt msg.
func (c *Connection) Enqueue(msg protocol.Message) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return ErrClosed
	}
	select {
	case c.out <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	case <-c.writerDone:
		return ErrClosed
	}
}

func (c *Connection) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case msg := <-c.out:
			if !c.write(msg) {
				return
			}
		case <-c.closing:
			// Flush what was queued before teardown began.
			for {
				select {
				case msg := <-c.out:
					if !c.write(msg) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Connection) write(msg protocol.Message) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Error("encode failed", logpkg.Str("type", msg.Kind.String()), logpkg.Err(err))
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.limits.WriteTimeout)
	err = c.transport.Write(ctx, data)
	cancel()
	if err != nil {
		c.logger.Warn("write failed", logpkg.Str("type", msg.Kind.String()), logpkg.Err(err))
		c.writeFailed.Store(true)
		c.setCause(CauseWriteFailed)
		// Teardown waits for this goroutine to exit.
		go c.teardown(CauseWriteFailed)
		return false
	}
	c.sup.metrics.MessageSent(c.sup.schema, msg.Kind.String())
	return true
}

func (c *Connection) setCause(cause string) {
	c.cause.CompareAndSwap(nil, &cause)
}

func (c *Connection) teardown(cause string) {
	c.teardownOnce.Do(func() {
		c.setCause(cause)
		cause = *c.cause.Load()
		c.state.Store(int32(StateClosing))
		c.cancel()
		c.stopKeepAlive()

		// Holding ownedMu orders this after any AddSubscription in flight.
		c.ownedMu.Lock()
		removed := c.sup.registry.RemoveAllForConnection(c.id)
		c.owned = make(map[string]struct{})
		c.ownedMu.Unlock()
		c.sup.metrics.SubscriptionsAdded(c.sup.schema, -len(removed))
		registered := c.sup.UnregisterConnection(c)

		// Cancel above released any Enqueue blocked on a full queue.
		c.sendMu.Lock()
		c.sendClosed = true
		c.sendMu.Unlock()
		close(c.closing)
		<-c.writerDone
		c.kaWG.Wait()
		if err := c.transport.Close(cause); err != nil {
			c.logger.Debug("transport close", logpkg.Err(err))
		}
		c.state.Store(int32(StateClosed))
		if registered {
			c.sup.metrics.ConnectionClosed(c.sup.schema, cause)
		}
		c.logger.Debug("connection closed",
			logpkg.Str("cause", cause),
			logpkg.Int("subscriptions_removed", len(removed)),
			logpkg.F("write_failed", c.writeFailed.Load()),
		)
		close(c.done)
	})
	<-c.done
}

// Session implementation used by handlers.

// Compiler returns the schema's query compiler.
func (c *Connection) Compiler() query.Compiler { return c.sup.engine }

// Limits returns the connection's limits.
func (c *Connection) Limits() Limits { return c.limits }

// Logger returns the connection-scoped logger.
func (c *Connection) Logger() logpkg.Logger { return c.logger }

// Owner returns the registry owner for subscriptions created on c.
func (c *Connection) Owner() registry.Owner { return c }

// SubscriptionCount returns how many subscriptions c owns.
func (c *Connection) SubscriptionCount() int {
	c.ownedMu.Lock()
	defer c.ownedMu.Unlock()
	return len(c.owned)
}

// SubscriptionIDs returns the owned subscription ids, sorted.
func (c *Connection) SubscriptionIDs() []string {
	c.ownedMu.Lock()
	out := make([]string, 0, len(c.owned))
	for k := range c.owned {
		out = append(out, k)
	}
	c.ownedMu.Unlock()
	sort.Strings(out)
	return out
}

// AddSubscription registers sub and records it as owned by c.
func (c *Connection) AddSubscription(sub *registry.Subscription) error {
	c.ownedMu.Lock()
	defer c.ownedMu.Unlock()
	if c.State() >= StateClosing {
		return ErrClosed
	}
	if err := c.sup.registry.Add(sub); err != nil {
		return err
	}
	c.owned[sub.ID] = struct{}{}
	c.sup.metrics.SubscriptionsAdded(c.sup.schema, 1)
	return nil
}

// RemoveSubscription removes the subscription c owns under id.
func (c *Connection) RemoveSubscription(id string) (*registry.Subscription, bool) {
	c.ownedMu.Lock()
	sub, ok := c.sup.registry.RemoveByConnectionAndID(c.id, id)
	if !ok {
		c.ownedMu.Unlock()
		return nil, false
	}
	delete(c.owned, id)
	c.ownedMu.Unlock()
	c.sup.metrics.SubscriptionsAdded(c.sup.schema, -1)
	return sub, true
}

// MarkReady moves Acknowledged to Ready; other states are left alone.
func (c *Connection) MarkReady() {
	c.state.CompareAndSwap(int32(StateAcknowledged), int32(StateReady))
}

// Terminate asks the receive loop to tear down after the current message.
func (c *Connection) Terminate() {
	c.setCause(CauseTerminate)
	c.terminate.Store(true)
}

// ConnectionInfo is a point-in-time view of a connection.
type ConnectionInfo struct {
	ID            string    `json:"id"`
	Schema        string    `json:"schema"`
	Remote        string    `json:"remote"`
	State         string    `json:"state"`
	Subscriptions []string  `json:"subscriptions"`
	AcceptedAt    time.Time `json:"acceptedAt"`
	QueueDepth    int       `json:"queueDepth"`
}

// Info returns a snapshot of c.
func (c *Connection) Info() ConnectionInfo {
	return ConnectionInfo{
		ID:            c.id,
		Schema:        c.sup.schema,
		Remote:        c.transport.RemoteAddr(),
		State:         c.State().String(),
		Subscriptions: c.SubscriptionIDs(),
		AcceptedAt:    c.acceptedAt,
		QueueDepth:    len(c.out),
	}
}

func (c *Connection) String() string {
	return fmt.Sprintf("conn %s (%s)", c.id, c.State())
}

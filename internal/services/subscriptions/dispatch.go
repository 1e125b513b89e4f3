package subsvc

import (
	"context"

	"github.com/rzbill/relay/internal/protocol"
	"github.com/rzbill/relay/internal/query"
	"github.com/rzbill/relay/internal/registry"
	logpkg "github.com/rzbill/relay/pkg/log"
)

// Session is what a handler may see and change on its connection.
type Session interface {
	ID() string
	State() State
	Compiler() query.Compiler
	Limits() Limits
	Logger() logpkg.Logger
	Owner() registry.Owner
	SubscriptionCount() int
	AddSubscription(sub *registry.Subscription) error
	RemoveSubscription(id string) (*registry.Subscription, bool)
	MarkReady()
	Terminate()
}

// Handler processes one inbound message and returns the messages to send,
// in order.
type Handler func(ctx context.Context, s Session, msg protocol.Message) []protocol.Message

// connection_init is handled by Connection itself and is absent here.
var handlers = map[protocol.Kind]Handler{
	protocol.KindStart:               handleStart,
	protocol.KindStop:                handleStop,
	protocol.KindConnectionTerminate: handleTerminate,
}

// Dispatch returns the handler for kind. Kinds without a handler resolve to
// one that answers with connection_error.
func Dispatch(kind protocol.Kind) Handler {
	if h, ok := handlers[kind]; ok {
		return h
	}
	return handleUnsupported
}

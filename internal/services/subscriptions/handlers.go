package subsvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/rzbill/relay/internal/protocol"
	"github.com/rzbill/relay/internal/query"
	"github.com/rzbill/relay/internal/registry"
	logpkg "github.com/rzbill/relay/pkg/log"
)

func notInitialised(msg protocol.Message) []protocol.Message {
	return []protocol.Message{protocol.ConnectionError(fmt.Sprintf("%s received before connection_init", msg.Name()))}
}

// handleStart compiles the request and registers a subscription. Success is
// silent; every failure is an error message for the id.
func handleStart(ctx context.Context, s Session, msg protocol.Message) []protocol.Message {
	if !s.State().accepting() {
		return notInitialised(msg)
	}
	s.MarkReady()

	if max := s.Limits().MaxSubscriptionsPerConnection; max > 0 && s.SubscriptionCount() >= max {
		return []protocol.Message{protocol.Error(msg.ID, fmt.Sprintf("subscription limit of %d reached", max))}
	}
	req := query.Request{
		Query:         msg.Start.Query,
		OperationName: msg.Start.OperationName,
		Variables:     msg.Start.Variables,
	}
	compiled, err := s.Compiler().CompileSubscription(ctx, req)
	if err != nil {
		s.Logger().Debug("start rejected", logpkg.Str("id", msg.ID), logpkg.Err(err))
		return []protocol.Message{protocol.Error(msg.ID, err.Error())}
	}
	sub := &registry.Subscription{
		ID:           msg.ID,
		ConnectionID: s.ID(),
		Route:        compiled.Route,
		Plan:         compiled.Plan,
		Owner:        s.Owner(),
	}
	if err := s.AddSubscription(sub); err != nil {
		if errors.Is(err, registry.ErrDuplicate) {
			return []protocol.Message{protocol.Error(msg.ID, fmt.Sprintf("subscription id %q is already in use", msg.ID))}
		}
		return []protocol.Message{protocol.Error(msg.ID, err.Error())}
	}
	s.Logger().Debug("subscription started", logpkg.Str("id", msg.ID), logpkg.Str("route", compiled.Route))
	return nil
}

// handleStop completes a live subscription; unknown ids are ignored.
func handleStop(_ context.Context, s Session, msg protocol.Message) []protocol.Message {
	if !s.State().accepting() {
		return notInitialised(msg)
	}
	s.MarkReady()
	if _, ok := s.RemoveSubscription(msg.ID); !ok {
		return nil
	}
	return []protocol.Message{protocol.Complete(msg.ID)}
}

func handleTerminate(_ context.Context, s Session, _ protocol.Message) []protocol.Message {
	s.Terminate()
	return nil
}

func handleUnsupported(_ context.Context, _ Session, msg protocol.Message) []protocol.Message {
	return []protocol.Message{protocol.ConnectionError(fmt.Sprintf("unsupported message type %q", msg.Name()))}
}

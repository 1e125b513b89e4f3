package grpcserver

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	"github.com/rzbill/relay/internal/eventlog"
	subsvc "github.com/rzbill/relay/internal/services/subscriptions"
)

const (
	EventsServiceName   = "relay.v1.Events"
	eventsPublishMethod = "/" + EventsServiceName + "/Publish"
	eventsRecentMethod  = "/" + EventsServiceName + "/Recent"
)

// PublishRequest submits one event for fan-out.
type PublishRequest struct {
	Schema  string          `json:"schema"`
	Route   string          `json:"route"`
	Payload json.RawMessage `json:"payload"`
}

// PublishResponse reports how the event was delivered.
type PublishResponse struct {
	Report subsvc.Report `json:"report"`
}

// RecentRequest reads journaled events, newest first.
type RecentRequest struct {
	Schema string `json:"schema"`
	Route  string `json:"route"`
	Limit  int    `json:"limit"`
}

// RecentResponse carries the journaled events.
type RecentResponse struct {
	Events []eventlog.Entry `json:"events"`
}

// EventsServer is the server API of relay.v1.Events.
type EventsServer interface {
	Publish(context.Context, *PublishRequest) (*PublishResponse, error)
	Recent(context.Context, *RecentRequest) (*RecentResponse, error)
}

// RegisterEventsServer registers srv on s.
func RegisterEventsServer(s grpc.ServiceRegistrar, srv EventsServer) {
	s.RegisterService(&EventsServiceDesc, srv)
}

// EventsServiceDesc describes relay.v1.Events.
var EventsServiceDesc = grpc.ServiceDesc{
	ServiceName: EventsServiceName,
	HandlerType: (*EventsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: eventsPublishHandler},
		{MethodName: "Recent", Handler: eventsRecentHandler},
	},
	Metadata: "relay/v1/events",
}

func eventsPublishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PublishRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EventsServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: eventsPublishMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EventsServer).Publish(ctx, req.(*PublishRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func eventsRecentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RecentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EventsServer).Recent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: eventsRecentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EventsServer).Recent(ctx, req.(*RecentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// EventsClient calls relay.v1.Events over cc.
type EventsClient struct {
	cc grpc.ClientConnInterface
}

// NewEventsClient returns a client bound to cc.
func NewEventsClient(cc grpc.ClientConnInterface) *EventsClient {
	return &EventsClient{cc: cc}
}

// Publish submits an event.
func (c *EventsClient) Publish(ctx context.Context, in *PublishRequest, opts ...grpc.CallOption) (*PublishResponse, error) {
	out := new(PublishResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, eventsPublishMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Recent reads journaled events.
func (c *EventsClient) Recent(ctx context.Context, in *RecentRequest, opts ...grpc.CallOption) (*RecentResponse, error) {
	out := new(RecentResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, eventsRecentMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

package transports

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	grpcserver "github.com/rzbill/relay/internal/server/grpc"
)

// GrpcTransport implements EventsTransport over the relay.v1.Events service.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

func (t *GrpcTransport) withClient(ctx context.Context, fn func(cli *grpcserver.EventsClient) error) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(grpcserver.NewEventsClient(conn))
}

// Publish sends an event via gRPC.
func (t *GrpcTransport) Publish(ctx context.Context, schema, route string, payload json.RawMessage) (Report, error) {
	var rep Report
	err := t.withClient(ctx, func(cli *grpcserver.EventsClient) error {
		resp, err := cli.Publish(ctx, &grpcserver.PublishRequest{Schema: schema, Route: route, Payload: payload})
		if err != nil {
			return err
		}
		r := resp.Report
		rep = Report{Route: r.Route, Matched: r.Matched, Delivered: r.Delivered, Failed: r.Failed, Skipped: r.Skipped, Dropped: r.Dropped}
		return nil
	})
	return rep, err
}

// Recent reads journaled events via gRPC.
func (t *GrpcTransport) Recent(ctx context.Context, schema, route string, limit int) ([]Event, error) {
	var out []Event
	err := t.withClient(ctx, func(cli *grpcserver.EventsClient) error {
		resp, err := cli.Recent(ctx, &grpcserver.RecentRequest{Schema: schema, Route: route, Limit: limit})
		if err != nil {
			return err
		}
		out = make([]Event, 0, len(resp.Events))
		for _, e := range resp.Events {
			out = append(out, Event{Schema: e.Schema, Route: e.Route, Seq: e.Seq, PublishedAt: e.PublishedAt, Payload: e.Payload})
		}
		return nil
	})
	return out, err
}

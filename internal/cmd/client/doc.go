// Package client provides the `relay` command-line client.
//
// The CLI talks to the relay HTTP, gRPC and websocket endpoints to publish
// events, read the journal and watch subscriptions from a terminal. It is
// primarily intended for developers and operators.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary it comes
// from RELAY_HTTP (default http://127.0.0.1:8080). The gRPC address is read
// from RELAY_GRPC (default 127.0.0.1:50051).
//
// Usage
//
//	relay publish --route fan.speedChanged --data '{"speed":5}'
//	relay publish --route fan.speedChanged --data '{"speed":5}' --transport http
//
//	relay events --route fan.speedChanged --limit 10
//
//	# Subscribe over graphql-ws; filter and select are CEL over `event`
//	relay subscribe --route fan.speedChanged --filter 'event.speed > 3' --limit 5
//	relay subscribe --url ws://127.0.0.1:8080/fans --route fan.speedChanged
//
//	relay connections --schema default
package client

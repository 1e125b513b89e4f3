// Package subsvc runs graphql-ws subscription connections and fans published
// events out to them.
//
// # Pieces
//
//   - Connection: one per accepted transport. A receive loop decodes messages
//     and dispatches them; a single writer goroutine owns the transport's
//     write side; a keep-alive ticker enqueues "ka" through the same writer.
//   - Dispatch: maps a message kind to a Handler. Handlers return the
//     messages to send, in order, and mutate the registry through the Session.
//   - Supervisor: one per schema. Owns the live connection set and the
//     registry, and exposes ReceiveEvent for publishers.
//
// # Lifecycle
//
//	Connecting -> Acknowledged -> Ready -> Closing -> Closed
//
// connection_init moves Connecting to Acknowledged and sends connection_ack
// followed by one ka. The first start or stop moves to Ready. Any transport
// error, connection_terminate or shutdown moves to Closing; teardown runs once
// and ends in Closed with none of the connection's subscriptions left behind.
//
// # Usage
//
//	sup := subsvc.New("default", engine, subsvc.WithLogger(l), subsvc.WithMetrics(m))
//	go sup.Serve(ctx, transport) // one per accepted websocket
//	rep := sup.ReceiveEvent(ctx, "fan.speedChanged", json.RawMessage(`{"speed":5}`))
package subsvc

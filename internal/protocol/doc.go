// Package protocol defines the graphql-ws subscription message model and its
// JSON wire codec.
//
// Every frame is a JSON object with a "type" discriminator, an optional "id"
// naming the client-chosen subscription, and an optional "payload":
//
//	{"type":"start","id":"1","payload":{"query":"orders.created","variables":{"filter":"event.total > 10"}}}
//	{"type":"data","id":"1","payload":{"id":7,"total":12}}
//	{"type":"complete","id":"1"}
//
// Messages are a closed set of kinds (see Kind). Decode never fails on an
// unrecognised discriminator: it yields KindUnknown so the dispatcher can
// answer with a connection_error instead of dropping the socket.
//
// Usage
//
//	msg, err := protocol.Decode(raw)
//	if err != nil { /* ErrMalformed or ErrMissingID */ }
//	out, _ := protocol.Encode(protocol.Complete(msg.ID))
package protocol

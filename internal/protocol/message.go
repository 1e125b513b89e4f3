package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks text that is not a decodable protocol message.
	ErrMalformed = errors.New("protocol: malformed message")
	// ErrMissingID marks an id-bearing message that arrived without an id.
	ErrMissingID = errors.New("protocol: message requires an id")
)

// StartPayload is the query request carried by a start message.
type StartPayload struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// Message is one protocol message. Which payload field is meaningful depends
// on Kind:
//
//	KindStart                        Start
//	KindData, KindConnectionInit     Payload (result document / connection params)
//	KindError, KindConnectionError   Diagnostic
type Message struct {
	Kind Kind
	ID   string
	// Type is the discriminator as received; empty for locally built messages.
	Type       string
	Start      *StartPayload
	Payload    json.RawMessage
	Diagnostic string
}

// Name returns the discriminator to report in diagnostics.
func (m Message) Name() string {
	if m.Type != "" {
		return m.Type
	}
	return m.Kind.String()
}

// Validate checks kind-specific requirements that decoding alone does not.
func (m Message) Validate() error {
	if m.Kind.RequiresID() && m.ID == "" {
		return fmt.Errorf("%w: %s", ErrMissingID, m.Name())
	}
	if m.Kind == KindStart && m.Start == nil {
		return fmt.Errorf("%w: start without payload", ErrMalformed)
	}
	return nil
}

// Init builds a connection_init message with optional connection params.
func Init(params json.RawMessage) Message {
	return Message{Kind: KindConnectionInit, Payload: params}
}

// Ack builds a connection_ack message.
func Ack() Message { return Message{Kind: KindConnectionAck} }

// KeepAlive builds a ka message.
func KeepAlive() Message { return Message{Kind: KindConnectionKeepAlive} }

// ConnectionError builds a connection-scoped error.
func ConnectionError(diagnostic string) Message {
	return Message{Kind: KindConnectionError, Diagnostic: diagnostic}
}

// Terminate builds a connection_terminate message.
func Terminate() Message { return Message{Kind: KindConnectionTerminate} }

// Start builds a start message.
func Start(id string, req StartPayload) Message {
	return Message{Kind: KindStart, ID: id, Start: &req}
}

// Stop builds a stop message.
func Stop(id string) Message { return Message{Kind: KindStop, ID: id} }

// Data builds a data message carrying a result document.
func Data(id string, result json.RawMessage) Message {
	return Message{Kind: KindData, ID: id, Payload: result}
}

// Error builds an operation-scoped error.
func Error(id, diagnostic string) Message {
	return Message{Kind: KindError, ID: id, Diagnostic: diagnostic}
}

// Complete builds a complete message.
func Complete(id string) Message { return Message{Kind: KindComplete, ID: id} }

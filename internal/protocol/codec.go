package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type diagnostic struct {
	Message string `json:"message"`
}

// Decode parses one complete text message. Unknown fields are ignored and
// field names match case-insensitively. An unrecognised type yields
// KindUnknown with Type set to the received discriminator.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	kind := ParseKind(env.Type)
	m := Message{Kind: kind, Type: env.Type}
	if !kind.ConnectionScoped() {
		m.ID = env.ID
	}
	payload := env.Payload
	if isNull(payload) {
		payload = nil
	}
	switch kind {
	case KindStart:
		if payload != nil {
			var sp StartPayload
			if err := json.Unmarshal(payload, &sp); err != nil {
				return Message{}, fmt.Errorf("%w: start payload: %v", ErrMalformed, err)
			}
			m.Start = &sp
		}
	case KindError, KindConnectionError:
		m.Diagnostic = decodeDiagnostic(payload)
	default:
		m.Payload = payload
	}
	return m, nil
}

// Encode renders m in wire form. Connection-scoped kinds never carry an id;
// operation kinds without one are rejected with ErrMissingID.
func Encode(m Message) ([]byte, error) {
	if m.Kind.RequiresID() && m.ID == "" {
		return nil, fmt.Errorf("encode %s: %w", m.Kind, ErrMissingID)
	}
	env := envelope{Type: m.Kind.String()}
	if m.Kind == KindUnknown && m.Type != "" {
		env.Type = m.Type
	}
	if !m.Kind.ConnectionScoped() {
		env.ID = m.ID
	}
	var err error
	switch m.Kind {
	case KindStart:
		if m.Start != nil {
			env.Payload, err = json.Marshal(m.Start)
		}
	case KindError:
		env.Payload, err = json.Marshal([]diagnostic{{Message: m.Diagnostic}})
	case KindConnectionError:
		env.Payload, err = json.Marshal(diagnostic{Message: m.Diagnostic})
	case KindData:
		env.Payload = m.Payload
		if len(env.Payload) == 0 {
			env.Payload = json.RawMessage("null")
		}
	default:
		env.Payload = m.Payload
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	return json.Marshal(env)
}

// decodeDiagnostic accepts the shapes seen in the wild: [{"message":..}],
// {"message":..} or a bare string.
func decodeDiagnostic(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var list []diagnostic
	if err := json.Unmarshal(payload, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, d := range list {
			msgs = append(msgs, d.Message)
		}
		return joinMessages(msgs)
	}
	var one diagnostic
	if err := json.Unmarshal(payload, &one); err == nil && one.Message != "" {
		return one.Message
	}
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}
	return string(payload)
}

func joinMessages(msgs []string) string {
	var b bytes.Buffer
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(m)
	}
	return b.String()
}

func isNull(p json.RawMessage) bool {
	return len(bytes.TrimSpace(p)) == 0 || bytes.Equal(bytes.TrimSpace(p), []byte("null"))
}

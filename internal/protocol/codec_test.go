package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKindCaseInsensitive(t *testing.T) {
	cases := map[string]Kind{
		"connection_init":      KindConnectionInit,
		"CONNECTION_INIT":      KindConnectionInit,
		" Start ":              KindStart,
		"ka":                   KindConnectionKeepAlive,
		"Connection_Terminate": KindConnectionTerminate,
		"subscribe":            KindUnknown,
		"":                     KindUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseKind(in), in)
	}
}

func TestDecodeStart(t *testing.T) {
	raw := `{"TYPE":"start","id":"1","extra":true,"payload":{"query":"fan.speedChanged","variables":{"filter":"event.speed > 1"}}}`
	m, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.Equal(t, KindStart, m.Kind)
	assert.Equal(t, "1", m.ID)
	require.NotNil(t, m.Start)
	assert.Equal(t, "fan.speedChanged", m.Start.Query)
	assert.Equal(t, "event.speed > 1", m.Start.Variables["filter"])
}

func TestDecodeDropsIDOnConnectionKinds(t *testing.T) {
	m, err := Decode([]byte(`{"type":"connection_init","id":"x","payload":{"token":"t"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindConnectionInit, m.Kind)
	assert.Empty(t, m.ID)
	assert.JSONEq(t, `{"token":"t"}`, string(m.Payload))
}

func TestDecodeUnknownKind(t *testing.T) {
	m, err := Decode([]byte(`{"type":"subscribe","id":"1"}`))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, m.Kind)
	assert.Equal(t, "subscribe", m.Name())
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{`{`, `[]`, `{"id":"1"}`, `{"type":"start","id":"1","payload":"nope"}`} {
		_, err := Decode([]byte(raw))
		assert.Truef(t, errors.Is(err, ErrMalformed), "%s: %v", raw, err)
	}
}

func TestValidateMissingID(t *testing.T) {
	m, err := Decode([]byte(`{"type":"stop"}`))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Validate(), ErrMissingID)

	m, err = Decode([]byte(`{"type":"start","id":"1"}`))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Validate(), ErrMalformed)
}

func TestOperationKindsRequireID(t *testing.T) {
	for _, m := range []Message{Error("", "boom"), Data("", nil), Complete(""), Stop("")} {
		assert.True(t, m.Kind.RequiresID(), m.Kind.String())
		assert.ErrorIs(t, m.Validate(), ErrMissingID, m.Kind.String())
		_, err := Encode(m)
		assert.ErrorIs(t, err, ErrMissingID, m.Kind.String())
	}
	m, err := Decode([]byte(`{"type":"error","payload":[{"message":"x"}]}`))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Validate(), ErrMissingID)
}

func TestEncodeShapes(t *testing.T) {
	cases := []struct {
		msg  Message
		want string
	}{
		{Ack(), `{"type":"connection_ack"}`},
		{KeepAlive(), `{"type":"ka"}`},
		{ConnectionError("bad"), `{"type":"connection_error","payload":{"message":"bad"}}`},
		{Data("1", json.RawMessage(`{"speed":5}`)), `{"type":"data","id":"1","payload":{"speed":5}}`},
		{Data("1", nil), `{"type":"data","id":"1","payload":null}`},
		{Error("2", "nope"), `{"type":"error","id":"2","payload":[{"message":"nope"}]}`},
		{Complete("3"), `{"type":"complete","id":"3"}`},
		{Stop("3"), `{"type":"stop","id":"3"}`},
		{Terminate(), `{"type":"connection_terminate"}`},
		{Message{Kind: KindConnectionAck, ID: "leak"}, `{"type":"connection_ack"}`},
	}
	for _, tc := range cases {
		out, err := Encode(tc.msg)
		require.NoError(t, err)
		assert.JSONEq(t, tc.want, string(out))
	}
}

func TestErrorDiagnosticShapes(t *testing.T) {
	for raw, want := range map[string]string{
		`{"type":"error","id":"1","payload":[{"message":"a"},{"message":"b"}]}`: "a; b",
		`{"type":"connection_error","payload":{"message":"c"}}`:              "c",
		`{"type":"error","id":"1","payload":"d"}`:                             "d",
	} {
		m, err := Decode([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, want, m.Diagnostic)
	}
}

func TestStartEncodesRequest(t *testing.T) {
	out, err := Encode(Start("7", StartPayload{Query: "orders.created", Variables: map[string]interface{}{"filter": "true"}}))
	require.NoError(t, err)
	back, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, "7", back.ID)
	assert.Equal(t, "orders.created", back.Start.Query)
}

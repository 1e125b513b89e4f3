package protocol

import "strings"

// Kind is the closed set of message kinds.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnectionInit
	KindConnectionAck
	KindConnectionError
	KindConnectionKeepAlive
	KindConnectionTerminate
	KindStart
	KindStop
	KindData
	KindError
	KindComplete
)

var kindNames = [...]string{
	KindUnknown:             "unknown",
	KindConnectionInit:      "connection_init",
	KindConnectionAck:       "connection_ack",
	KindConnectionError:     "connection_error",
	KindConnectionKeepAlive: "ka",
	KindConnectionTerminate: "connection_terminate",
	KindStart:               "start",
	KindStop:                "stop",
	KindData:                "data",
	KindError:               "error",
	KindComplete:            "complete",
}

var kindByName = map[string]Kind{
	"connection_init":       KindConnectionInit,
	"connection_ack":        KindConnectionAck,
	"connection_error":      KindConnectionError,
	"ka":                    KindConnectionKeepAlive,
	"keep_alive":            KindConnectionKeepAlive,
	"connection_keep_alive": KindConnectionKeepAlive,
	"connection_terminate":  KindConnectionTerminate,
	"start":                 KindStart,
	"stop":                  KindStop,
	"data":                  KindData,
	"error":                 KindError,
	"complete":              KindComplete,
}

// String returns the wire discriminator.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind maps a wire discriminator to a Kind, ignoring case and
// surrounding whitespace. Unrecognised names return KindUnknown.
func ParseKind(s string) Kind {
	if k, ok := kindByName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k
	}
	return KindUnknown
}

// ConnectionScoped reports whether the kind belongs to the connection rather
// than to a single subscription. Connection-scoped messages never carry an id.
func (k Kind) ConnectionScoped() bool {
	switch k {
	case KindConnectionInit, KindConnectionAck, KindConnectionError,
		KindConnectionKeepAlive, KindConnectionTerminate:
		return true
	}
	return false
}

// RequiresID reports whether a well-formed message of this kind must carry an id.
func (k Kind) RequiresID() bool {
	switch k {
	case KindStart, KindStop, KindData, KindError, KindComplete:
		return true
	}
	return false
}

// ClientToServer reports whether clients may send this kind.
func (k Kind) ClientToServer() bool {
	switch k {
	case KindConnectionInit, KindConnectionTerminate, KindStart, KindStop:
		return true
	}
	return false
}

package subsvc

// State is the protocol state of a Connection.
type State int32

const (
	StateConnecting State = iota
	StateAcknowledged
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAcknowledged:
		return "acknowledged"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// accepting reports whether start/stop traffic is allowed.
func (s State) accepting() bool {
	return s == StateAcknowledged || s == StateReady
}

// Teardown causes. Transport.Close receives one as its reason; they are
// also the metrics label.
const (
	CauseClientClose    = "client_close"
	CauseTerminate      = "terminate"
	CauseTransportError = "transport_error"
	CauseFraming        = "framing_error"
	CauseWriteFailed    = "write_failed"
	CauseShutdown       = "shutdown"
)

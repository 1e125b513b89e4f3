package subsvc

import "time"

// Limits are the per-connection and fan-out tunables.
type Limits struct {
	// KeepAlive is the ka interval; zero disables the ticker (the ka that
	// follows connection_ack is still sent).
	KeepAlive time.Duration
	// SendBuffer is the capacity of each connection's outbound queue.
	SendBuffer int
	// WriteTimeout bounds a single transport write.
	WriteTimeout time.Duration
	// MaxSubscriptionsPerConnection rejects further starts once reached; 0 is unlimited.
	MaxSubscriptionsPerConnection int
	// FanoutConcurrency bounds concurrent plan executions per event.
	FanoutConcurrency int
}

// DefaultLimits returns the defaults used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		KeepAlive:         2 * time.Minute,
		SendBuffer:        256,
		WriteTimeout:      10 * time.Second,
		FanoutConcurrency: 16,
	}
}

func (l Limits) normalized() Limits {
	d := DefaultLimits()
	if l.KeepAlive < 0 {
		l.KeepAlive = 0
	}
	if l.SendBuffer <= 0 {
		l.SendBuffer = d.SendBuffer
	}
	if l.WriteTimeout <= 0 {
		l.WriteTimeout = d.WriteTimeout
	}
	if l.FanoutConcurrency <= 0 {
		l.FanoutConcurrency = d.FanoutConcurrency
	}
	if l.MaxSubscriptionsPerConnection < 0 {
		l.MaxSubscriptionsPerConnection = 0
	}
	return l
}

package log

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
)

// handler is the slog.Handler behind every Logger. It flattens attributes
// into a Record and hands it to the shared sink.
type handler struct {
	sink   *sink
	attrs  []slog.Attr
	prefix string
	redact map[string]struct{}
	sample *sampler
}

var _ slog.Handler = (*handler)(nil)

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return fromSlogLevel(level) >= h.sink.level
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	if h.sample != nil && !h.sample.keep(r.Level, r.Message) {
		return nil
	}
	fields := make(Fields, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		h.put(fields, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.put(fields, h.prefix, a)
		return true
	})
	rec := &Record{
		Level:     fromSlogLevel(r.Level),
		Message:   r.Message,
		Fields:    fields,
		Timestamp: r.Time,
	}
	if r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		rec.Caller = f.File + ":" + strconv.Itoa(f.Line)
	}
	return h.sink.emit(rec)
}

func (h *handler) put(fields Fields, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := prefix + a.Key
	if _, hidden := h.redact[a.Key]; hidden {
		fields[key] = "[REDACTED]"
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.put(fields, key+".", ga)
		}
		return
	}
	fields[key] = a.Value.Resolve().Any()
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

// sampler keeps the first `initial` records of each level+message pair and
// then one in every `every`.
type sampler struct {
	mu      sync.Mutex
	initial uint64
	every   uint64
	seen    map[string]uint64
}

func newSampler(initial, every int) *sampler {
	return &sampler{
		initial: uint64(max(initial, 0)),
		every:   uint64(max(every, 1)),
		seen:    make(map[string]uint64),
	}
}

func (s *sampler) keep(level slog.Level, msg string) bool {
	key := level.String() + "|" + msg
	s.mu.Lock()
	n := s.seen[key]
	s.seen[key] = n + 1
	s.mu.Unlock()
	return n < s.initial || (n-s.initial)%s.every == 0
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func fromSlogLevel(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return DebugLevel
	case l < slog.LevelWarn:
		return InfoLevel
	case l < slog.LevelError:
		return WarnLevel
	}
	return ErrorLevel
}

package log

import (
	"fmt"
	"strings"
)

// Config declares how a process logger is built.
type Config struct {
	Level      string         `json:"level" yaml:"level"`
	Format     string         `json:"format" yaml:"format"` // "text" or "json"
	Outputs    []OutputConfig `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	ShowCaller bool           `json:"showCaller,omitempty" yaml:"showCaller,omitempty"`
	// Redact lists field keys whose values are replaced with "[REDACTED]".
	Redact   []string        `json:"redact,omitempty" yaml:"redact,omitempty"`
	Sampling *SamplingConfig `json:"sampling,omitempty" yaml:"sampling,omitempty"`
}

// OutputConfig selects one output. Type is "console", "file" or "null".
type OutputConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// SamplingConfig keeps the first Initial records per message, then every Thereafter-th.
type SamplingConfig struct {
	Initial    int `json:"initial" yaml:"initial"`
	Thereafter int `json:"thereafter" yaml:"thereafter"`
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{ShowCaller: cfg.ShowCaller}
	case "json":
		formatter = &JSONFormatter{ShowCaller: cfg.ShowCaller}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter)}
	for _, oc := range cfg.Outputs {
		switch strings.ToLower(oc.Type) {
		case "", "console":
			opts = append(opts, WithOutput(NewConsoleOutput()))
		case "file":
			fo, err := NewFileOutput(oc.Path)
			if err != nil {
				return nil, fmt.Errorf("log file output: %w", err)
			}
			opts = append(opts, WithOutput(fo))
		case "null":
			opts = append(opts, WithOutput(NullOutput{}))
		default:
			return nil, fmt.Errorf("unknown log output %q", oc.Type)
		}
	}
	l := NewLogger(opts...).(*logger)
	h := l.h.(*handler)
	if len(cfg.Redact) > 0 {
		h.redact = make(map[string]struct{}, len(cfg.Redact))
		for _, k := range cfg.Redact {
			h.redact[k] = struct{}{}
		}
	}
	if cfg.Sampling != nil && cfg.Sampling.Thereafter > 0 {
		h.sample = newSampler(cfg.Sampling.Initial, cfg.Sampling.Thereafter)
	}
	return l, nil
}

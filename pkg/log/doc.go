// Package log provides relay's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Every record passes through a
// log/slog handler that flattens attributes into a Record for the
// configured formatter and outputs.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("subscriptions"), log.Str("schema", "default"))
//	l.Info("connection accepted", log.Str("conn_id", id))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config: text or JSON
// formatting, console/file/null outputs, key redaction and sampling.
//
// # Interop
//
// RedirectStdLog routes the standard library logger (used by pebble and
// grpc internals) through a Logger. ToStdLogger returns a *log.Logger for
// APIs such as http.Server.ErrorLog.
package log

// Package config loads relay's server configuration: the schemas and the
// routes their subscription endpoints are mounted on, per-connection limits,
// and journal retention. Files may be JSON or YAML; RELAY_* environment
// variables are overlaid afterwards.
//
// Example:
//
//	cfg, err := config.Load("/etc/relay.yaml")
//	if err != nil { /* handle */ }
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
package config

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	clientcmd "github.com/rzbill/relay/internal/cmd/client"
	serverrun "github.com/rzbill/relay/internal/cmd/server"
	cfgpkg "github.com/rzbill/relay/internal/config"
	pebblestore "github.com/rzbill/relay/internal/storage/pebble"
	logpkg "github.com/rzbill/relay/pkg/log"
)

func main() {
	// Respect RELAY_LOG_LEVEL for both CLI and server start output
	level := os.Getenv("RELAY_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := clientcmd.NewRoot(clientcmd.HTTPBaseFromEnv)
	rootCmd.Short = "Relay subscription server and CLI"
	rootCmd.Long = "Relay serves graphql-ws subscriptions and fans published events out to them. This CLI runs the server and talks to it."

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverCmd.AddCommand(newServerStartCommand())
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(newConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServerStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Short:   "Start relay server (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			httpAddr, _ := cmd.Flags().GetString("http")
			configPath, _ := cmd.Flags().GetString("config")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			origins, _ := cmd.Flags().GetStringSlice("origin")
			keepAliveMs, _ := cmd.Flags().GetInt("keepalive-ms")
			maxBytes, _ := cmd.Flags().GetInt64("max-message-bytes")

			mode, err := pebblestore.ParseFsyncMode(fsyncMode)
			if err != nil {
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}
			flags := cmd.Flags()
			override := func(c *cfgpkg.Config) {
				if flags.Changed("keepalive-ms") {
					c.KeepAliveMs = keepAliveMs
				}
				if flags.Changed("max-message-bytes") {
					c.MaxMessageBytes = maxBytes
				}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:        dataDir,
				GRPCAddr:       grpcAddr,
				HTTPAddr:       httpAddr,
				ConfigPath:     configPath,
				LogLevel:       logLevel,
				LogFormat:      logFormat,
				Fsync:          mode,
				FsyncInterval:  time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:         cfgpkg.Default(),
				OriginPatterns: origins,
				Override:       override,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	cmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	cmd.Flags().String("grpc", ":50051", "gRPC listen address")
	cmd.Flags().String("http", ":8080", "HTTP listen address (API, websocket subscriptions, /metrics)")
	cmd.Flags().String("config", os.Getenv("RELAY_CONFIG"), "Config file (.json, .yaml)")
	cmd.Flags().String("fsync", "interval", "Fsync mode: always|interval|never")
	cmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms")
	cmd.Flags().String("log-level", os.Getenv("RELAY_LOG_LEVEL"), "Log level: debug|info|warn|error")
	cmd.Flags().String("log-format", os.Getenv("RELAY_LOG_FORMAT"), "Log format: text|json (default text)")
	cmd.Flags().StringSlice("origin", nil, "Allowed websocket origin patterns (default any)")
	cmd.Flags().Int("keepalive-ms", 0, "Keep-alive interval in ms (0 disables the ticker)")
	cmd.Flags().Int64("max-message-bytes", 0, "Largest accepted client message")
	return cmd
}

// newConfigCommand prints the effective configuration after validation.
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration commands"}
	check := &cobra.Command{
		Use:   "check",
		Short: "Load, validate and print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(path)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
	check.Flags().String("config", os.Getenv("RELAY_CONFIG"), "Config file (.json, .yaml)")
	cmd.AddCommand(check)
	return cmd
}

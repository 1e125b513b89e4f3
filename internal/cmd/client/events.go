package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPublishCommand constructs the `publish` command.
func NewPublishCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an event to every subscription on a route",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			route, _ := cmd.Flags().GetString("route")
			data, _ := cmd.Flags().GetString("data")
			kind, _ := cmd.Flags().GetString("transport")
			if route == "" {
				return fmt.Errorf("--route is required")
			}
			tr, err := getTransport(kind, baseURL)
			if err != nil {
				return err
			}
			rep, err := tr.Publish(cmd.Context(), schema, route, parsePayload(data))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringP("schema", "s", "", "Schema (default: first configured)")
	cmd.Flags().String("route", "", "Route, e.g. fan.speedChanged")
	cmd.Flags().String("data", "", "Event payload; JSON or plain text")
	cmd.Flags().String("transport", "grpc", "Transport: grpc|http")
	return cmd
}

// NewEventsCommand constructs the `events` command, which reads the journal.
func NewEventsCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recently published events on a route, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			route, _ := cmd.Flags().GetString("route")
			limit, _ := cmd.Flags().GetInt("limit")
			kind, _ := cmd.Flags().GetString("transport")
			if route == "" {
				return fmt.Errorf("--route is required")
			}
			tr, err := getTransport(kind, baseURL)
			if err != nil {
				return err
			}
			events, err := tr.Recent(cmd.Context(), schema, route, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"route": route, "events": events})
		},
	}
	cmd.Flags().StringP("schema", "s", "", "Schema (default: first configured)")
	cmd.Flags().String("route", "", "Route")
	cmd.Flags().Int("limit", 20, "Max events to return")
	cmd.Flags().String("transport", "grpc", "Transport: grpc|http")
	return cmd
}

package client

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	transports "github.com/rzbill/relay/internal/cmd/client/transports"
)

// NewSubscribeCommand constructs the `subscribe` command. Each result is
// printed as one JSON line: {"id": ..., "payload": ...}.
func NewSubscribeCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to a route over graphql-ws and print results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rawURL, _ := cmd.Flags().GetString("url")
			path, _ := cmd.Flags().GetString("path")
			route, _ := cmd.Flags().GetString("route")
			filter, _ := cmd.Flags().GetString("filter")
			sel, _ := cmd.Flags().GetString("select")
			id, _ := cmd.Flags().GetString("id")
			limit, _ := cmd.Flags().GetInt("limit")
			initJSON, _ := cmd.Flags().GetString("init-json")
			if route == "" {
				return fmt.Errorf("--route is required")
			}
			if rawURL == "" {
				u, err := websocketURL(baseURL(), path)
				if err != nil {
					return err
				}
				rawURL = u
			}
			if id == "" {
				id = uuid.NewString()
			}
			var initPayload json.RawMessage
			if initJSON != "" {
				if !json.Valid([]byte(initJSON)) {
					return fmt.Errorf("--init-json must be valid JSON")
				}
				initPayload = json.RawMessage(initJSON)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			req := transports.SubscribeRequest{
				URL: rawURL, ID: id, Route: route, Filter: filter, Select: sel,
				InitPayload: initPayload, Limit: limit,
			}
			return transports.WSSubscriber{}.Subscribe(cmd.Context(), req, func(id string, payload json.RawMessage) error {
				return enc.Encode(map[string]any{"id": id, "payload": payload})
			})
		},
	}
	cmd.Flags().String("url", "", "Websocket URL (overrides base URL + --path)")
	cmd.Flags().String("path", "/graphql", "Subscription endpoint path")
	cmd.Flags().String("route", "", "Route to subscribe to")
	cmd.Flags().String("filter", "", "CEL predicate over event, e.g. event.speed > 3")
	cmd.Flags().String("select", "", "CEL projection over event")
	cmd.Flags().String("id", "", "Subscription id (default: random UUID)")
	cmd.Flags().Int("limit", 0, "Stop after N results (0 = infinite)")
	cmd.Flags().String("init-json", "", "connection_init payload as JSON")
	return cmd
}

package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the relay client.
// It registers the publish, events, subscribe and connections commands.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "relay",
		Short: "Relay client commands",
	}
	root.AddCommand(
		NewPublishCommand(baseURL),
		NewEventsCommand(baseURL),
		NewSubscribeCommand(baseURL),
		NewConnectionsCommand(baseURL),
	)
	return root
}

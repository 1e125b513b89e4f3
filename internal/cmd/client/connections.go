package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

// NewConnectionsCommand constructs the `connections` command, which lists
// live subscription connections per schema over HTTP.
func NewConnectionsCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "List live connections and their subscriptions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			target := baseURL() + "/v1/connections"
			if schema != "" {
				target += "?schema=" + url.QueryEscape(schema)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, target, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("http %d: %s", resp.StatusCode, b)
			}
			var data any
			if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringP("schema", "s", "", "Only this schema")
	return cmd
}

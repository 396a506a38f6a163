package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/0x5457/repograph/cmd/cmdsfx"
)

// NewMCPServeCommand runs an MCP server exposing the query tools.
func NewMCPServeCommand(e *env) *cobra.Command {
	var (
		transport string
		address   string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run MCP server",
		Long:  "Run MCP server, exposing index, update and every query as a tool.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, e, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunMCPServer(ctx, transport, address)
			})
		},
	}

	cmd.Flags().
		StringVarP(&transport, "transport", "t", "stdio", "transport (stdio, http, sse)")
	cmd.Flags().StringVarP(&address, "address", "a", "", "server address (http modes), e.g. :8080")

	return cmd
}

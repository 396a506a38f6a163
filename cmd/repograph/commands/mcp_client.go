package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/0x5457/repograph/cmd/cmdsfx"
	appmcp "github.com/0x5457/repograph/internal/mcp"
)

// NewMCPClientCommand creates commands for connecting to and interacting with MCP servers
func NewMCPClientCommand(e *env) *cobra.Command {
	var (
		transport string
		address   string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mcp-client",
		Short: "MCP client commands",
		Long:  "Commands for connecting to and interacting with MCP servers",
	}

	withClient := func(cmd *cobra.Command, fn func(context.Context, *appmcp.Client) error) error {
		if transport == appmcp.TransportInproc {
			var srv *server.MCPServer
			return run(cmd, e, func(ctx context.Context, _ *cmdsfx.CommandRunner) error {
				return dialAndRun(ctx, timeout, transport, address, srv, nil, fn)
			}, fx.Populate(&srv))
		}
		return dialAndRun(cmd.Context(), timeout, transport, address, nil, forwardedFlags(cmd), fn)
	}

	cmd.AddCommand(
		newMCPCallCommand(withClient),
		newMCPListToolsCommand(withClient),
	)

	cmd.PersistentFlags().
		StringVarP(&transport, "transport", "t", appmcp.TransportStdio, "transport (stdio, http, sse, inproc)")
	cmd.PersistentFlags().
		StringVarP(&address, "address", "a", "", "server URL (http/sse), ignored for stdio/inproc")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall request timeout")

	return cmd
}

func dialAndRun(
	ctx context.Context,
	timeout time.Duration,
	transport, address string,
	srv *server.MCPServer,
	args []string,
	fn func(context.Context, *appmcp.Client) error,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch {
	case address != "":
	case transport == appmcp.TransportHTTP:
		address = "http://127.0.0.1:8080/mcp"
	case transport == appmcp.TransportSSE:
		address = "http://127.0.0.1:8080/mcp/sse"
	}

	client, err := appmcp.Dial(ctx, transport, address, srv, args...)
	if err != nil {
		return fmt.Errorf("create MCP client failed: %w", err)
	}
	defer client.Close() //nolint:errcheck
	return fn(ctx, client)
}

// forwardedFlags passes the global flags set on this invocation to a
// server launched over stdio.
func forwardedFlags(cmd *cobra.Command) []string {
	var out []string
	for _, name := range []string{
		"root", "index", "embedder", "embed-url", "symbol-db", "vector-db", "log-level", "workers", "exclude",
	} {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		out = append(out, "--"+name+"="+strings.Trim(f.Value.String(), "[]"))
	}
	return out
}

type clientRunner func(*cobra.Command, func(context.Context, *appmcp.Client) error) error

func newMCPCallCommand(withClient clientRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool_name> [args...]",
		Short: "Call a specific MCP tool",
		Long: `Call a specific MCP tool with arguments.
Arguments should be provided as key=value pairs.

Example:
  repograph mcp-client call impact file=src/app.py depth=3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := parseToolArgs(args[1:])
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, client *appmcp.Client) error {
				result, err := client.Call(ctx, args[0], toolArgs)
				if err != nil {
					return fmt.Errorf("call tool failed: %w", err)
				}

				output, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("format result failed: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				if result.IsError {
					return fmt.Errorf("tool %s reported an error", args[0])
				}
				return nil
			})
		},
	}
}

// parseToolArgs turns key=value pairs into tool arguments. Values that
// parse as numbers or booleans keep that type.
func parseToolArgs(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument format: %s (expected key=value)", arg)
		}
		if val, err := strconv.Atoi(value); err == nil {
			out[key] = val
		} else if val, err := strconv.ParseFloat(value, 64); err == nil {
			out[key] = val
		} else if val, err := strconv.ParseBool(value); err == nil {
			out[key] = val
		} else {
			out[key] = value
		}
	}
	return out, nil
}

func newMCPListToolsCommand(withClient clientRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "list-tools",
		Short: "List available MCP tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client *appmcp.Client) error {
				tools, err := client.ListTools(ctx)
				if err != nil {
					return fmt.Errorf("failed to list tools: %w", err)
				}

				w := cmd.OutOrStdout()
				if len(tools) == 0 {
					_, _ = fmt.Fprintln(w, "No tools available")
					return nil
				}

				_, _ = fmt.Fprintf(w, "Available MCP tools (%d):\n\n", len(tools))
				for i, tool := range tools {
					_, _ = fmt.Fprintf(w, "%d. %s\n", i+1, tool.Name)
					if tool.Description != "" {
						_, _ = fmt.Fprintf(w, "   Description: %s\n", tool.Description)
					}
					names := make([]string, 0, len(tool.InputSchema.Properties))
					for name := range tool.InputSchema.Properties {
						names = append(names, name)
					}
					slices.Sort(names)
					if len(names) > 0 {
						_, _ = fmt.Fprintf(w, "   Parameters:\n")
					}
					for _, name := range names {
						required := ""
						if slices.Contains(tool.InputSchema.Required, name) {
							required = " (required)"
						}
						desc := ""
						if propMap, ok := tool.InputSchema.Properties[name].(map[string]any); ok {
							desc, _ = propMap["description"].(string)
						}
						if desc != "" {
							_, _ = fmt.Fprintf(w, "     - %s%s: %s\n", name, required, desc)
						} else {
							_, _ = fmt.Fprintf(w, "     - %s%s\n", name, required)
						}
					}
					_, _ = fmt.Fprintln(w)
				}
				return nil
			})
		},
	}
}

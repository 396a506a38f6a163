package cmdsfx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"

	"github.com/0x5457/repograph/internal/config/configfx"
	"github.com/0x5457/repograph/internal/logging"
	appmcp "github.com/0x5457/repograph/internal/mcp"
	"github.com/0x5457/repograph/internal/query"
	"github.com/0x5457/repograph/internal/watch"
)

const defaultAddress = ":8080"

// CommandRunner provides methods to run different application commands
type CommandRunner struct {
	config    *configfx.Config
	service   *query.Service
	mcpServer *server.MCPServer
	log       *slog.Logger
	out       io.Writer
}

// Params represents dependencies for command runner
type Params struct {
	fx.In

	Config    *configfx.Config
	Service   *query.Service
	MCPServer *server.MCPServer `optional:"true"`
	Logger    *slog.Logger      `optional:"true"`
	Output    io.Writer         `name:"cmdOutput" optional:"true"`
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(params Params) *CommandRunner {
	out := params.Output
	if out == nil {
		out = os.Stdout
	}
	return &CommandRunner{
		config:    params.Config,
		service:   params.Service,
		mcpServer: params.MCPServer,
		log:       logging.OrDiscard(params.Logger),
		out:       out,
	}
}

// Service exposes the query service to command implementations.
func (r *CommandRunner) Service() *query.Service { return r.service }

// RunIndex builds the index from scratch and prints a summary.
func (r *CommandRunner) RunIndex(ctx context.Context) error {
	res, err := r.service.Build(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(r.out, "indexed %d files, %d symbols in %s\n",
		res.Files, res.Symbols, res.Duration.Round(time.Millisecond))
	r.printSemantic(res.Semantic.Available, res.Semantic.Reason, res.Semantic.Embedded, res.Semantic.Reused)
	return nil
}

// RunUpdate applies an incremental update and prints what changed.
func (r *CommandRunner) RunUpdate(ctx context.Context) error {
	res, err := r.service.Update(ctx)
	if err != nil {
		return err
	}
	c := res.Changes
	if c.Empty() {
		_, _ = fmt.Fprintln(r.out, "index is up to date")
	} else {
		_, _ = fmt.Fprintf(r.out, "added %d, changed %d, deleted %d files in %s\n",
			len(c.Added), len(c.Changed), len(c.Deleted), res.Duration.Round(time.Millisecond))
	}
	r.printSemantic(res.Semantic.Available, res.Semantic.Reason, res.Semantic.Embedded, res.Semantic.Reused)
	return nil
}

func (r *CommandRunner) printSemantic(ok bool, reason string, embedded, reused int) {
	if !ok {
		_, _ = fmt.Fprintf(r.out, "semantic search unavailable: %s\n", reason)
		return
	}
	_, _ = fmt.Fprintf(r.out, "embeddings: %d new, %d reused\n", embedded, reused)
}

// RunQuery runs fn against the query service and prints its result as JSON.
func (r *CommandRunner) RunQuery(ctx context.Context, fn func(context.Context, *query.Service) (any, error)) error {
	v, err := fn(ctx, r.service)
	if err != nil {
		if query.IsNotIndexed(err) {
			return fmt.Errorf("%w, run the index command first", err)
		}
		return err
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RunWatch keeps the index current until ctx is done. A missing index is
// built first.
func (r *CommandRunner) RunWatch(ctx context.Context) error {
	if _, err := r.service.Index(ctx); err != nil {
		if !query.IsNotIndexed(err) {
			return err
		}
		if err := r.RunIndex(ctx); err != nil {
			return err
		}
	}

	w := watch.New(r.config.Root, func(ctx context.Context, changed []string) error {
		r.log.Debug("files changed", "count", len(changed))
		return r.RunUpdate(ctx)
	}, watch.Options{
		Debounce: r.config.Debounce,
		Exclude:  r.config.Exclude,
		Logger:   r.log,
	})
	r.log.Info("watching", "root", r.config.Root)
	return w.Run(ctx)
}

// RunMCPServer serves the MCP tools until ctx is done.
func (r *CommandRunner) RunMCPServer(ctx context.Context, transport, address string) error {
	if r.mcpServer == nil {
		return fmt.Errorf("MCP server not available")
	}
	if address == "" {
		address = defaultAddress
	}

	switch transport {
	case appmcp.TransportStdio:
		return server.NewStdioServer(r.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
	case appmcp.TransportHTTP:
		httpSrv := server.NewStreamableHTTPServer(r.mcpServer)
		r.log.Info("serving mcp", "transport", transport, "address", address)
		return serveUntilDone(ctx, func() error { return httpSrv.Start(address) }, httpSrv.Shutdown)
	case appmcp.TransportSSE:
		// SSE server exposes two endpoints under the static base path "/mcp"
		sseSrv := server.NewSSEServer(r.mcpServer,
			server.WithBaseURL(""),
			server.WithStaticBasePath("/mcp"),
		)
		r.log.Info("serving mcp", "transport", transport, "address", address)
		return serveUntilDone(ctx, func() error { return sseSrv.Start(address) }, sseSrv.Shutdown)
	default:
		return fmt.Errorf(
			"unsupported transport: %s (supported: stdio, http, sse)",
			transport,
		)
	}
}

func serveUntilDone(ctx context.Context, start func() error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(stopCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Module provides command runner
var Module = fx.Module("commands",
	fx.Provide(NewCommandRunner),
)

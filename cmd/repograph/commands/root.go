package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/0x5457/repograph/cmd/cmdsfx"
	"github.com/0x5457/repograph/internal/app/appfx"
	"github.com/0x5457/repograph/internal/constants"
)

// EnvPrefix prefixes the environment variables bound to global flags,
// e.g. REPOGRAPH_ROOT or REPOGRAPH_EMBED_URL.
const EnvPrefix = "REPOGRAPH"

// env resolves global settings from flags and the environment.
type env struct{ v *viper.Viper }

func (e *env) settings() appfx.Settings {
	return appfx.Settings{
		Root:      e.v.GetString("root"),
		IndexPath: e.v.GetString("index"),
		Embedder:  e.v.GetString("embedder"),
		EmbedURL:  e.v.GetString("embed-url"),
		SymbolDB:  e.v.GetString("symbol-db"),
		VectorDB:  e.v.GetString("vector-db"),
		LogLevel:  e.v.GetString("log-level"),
		Workers:   e.v.GetInt("workers"),
		Exclude:   e.v.GetStringSlice("exclude"),
	}
}

// NewRootCommand assembles the repograph command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&env{v: viper.New()})
}

func newRootCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "repograph",
		Short:         "Structural index of a repository: symbols, call graph and impact analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.String("root", ".", "repository root")
	f.String("index", "", "index snapshot path (default <root>/.repograph/index.json)")
	f.String("embedder", "", "embedder: local, api or none (default local, api when --embed-url is set)")
	f.String("embed-url", "", "embedding API URL")
	f.String("symbol-db", "", "optional SQLite mirror of symbols and calls")
	f.String("vector-db", "", "optional sqlite-vec database for embeddings")
	f.String("log-level", constants.DefaultLogLevel, "log level: debug, info, warn, error or silent")
	f.Int("workers", 0, "parse workers (default: number of CPUs)")
	f.StringSlice("exclude", nil, "glob patterns to leave out of the index")

	_ = e.v.BindPFlags(f)
	e.v.SetEnvPrefix(EnvPrefix)
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.v.AutomaticEnv()

	cmd.AddCommand(
		NewIndexCommand(e),
		NewUpdateCommand(e),
		NewWatchCommand(e),
		NewMCPServeCommand(e),
		NewMCPClientCommand(e),
	)
	cmd.AddCommand(newQueryCommands(e)...)
	return cmd
}

// run starts the application, hands its command runner to fn and stops
// the application afterwards.
func run(
	cmd *cobra.Command,
	e *env,
	fn func(context.Context, *cmdsfx.CommandRunner) error,
	opts ...fx.Option,
) error {
	var runner *cmdsfx.CommandRunner
	app := appfx.NewAppWithConfig(e.settings(), append(opts, fx.Populate(&runner))...)
	if err := app.Err(); err != nil {
		return err
	}

	ctx := cmd.Context()
	startCtx, cancel := context.WithTimeout(ctx, fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	runErr := fn(ctx, runner)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}
	return runErr
}

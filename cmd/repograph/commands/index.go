package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/0x5457/repograph/cmd/cmdsfx"
	"github.com/0x5457/repograph/internal/models"
)

// progressPrinter renders indexing progress on a single terminal line.
func progressPrinter(w io.Writer) func(models.IndexProgress) {
	return func(p models.IndexProgress) {
		switch p.Stage {
		case models.IndexStageDone:
			_, _ = fmt.Fprintln(w)
		default:
			pct := 0.0
			if p.TotalFiles > 0 {
				pct = float64(p.ParsedFiles) / float64(p.TotalFiles) * 100
			}
			_, _ = fmt.Fprintf(w, "\r[%3.0f%%] stage=%-8s %d/%d %-40s",
				pct, p.Stage, p.ParsedFiles, p.TotalFiles, p.CurrentFile)
			if p.Stage == models.IndexStageEmbed && p.ParsedFiles == p.TotalFiles {
				_, _ = fmt.Fprintln(w)
			}
		}
	}
}

func withProgress(enabled bool) fx.Option {
	if !enabled {
		return fx.Options()
	}
	return fx.Provide(func() func(models.IndexProgress) { return progressPrinter(os.Stderr) })
}

func NewIndexCommand(e *env) *cobra.Command {
	var progress bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the index of the repository from scratch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, e, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunIndex(ctx)
			}, withProgress(progress))
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "print progress to stderr")
	return cmd
}

func NewUpdateCommand(e *env) *cobra.Command {
	var progress bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Re-index only the files changed since the last build",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, e, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunUpdate(ctx)
			}, withProgress(progress))
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "print progress to stderr")
	return cmd
}

func NewWatchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the index current while files change",
		Long:  "Watch the repository and apply an incremental update after each burst of changes. Builds the index first when none exists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, e, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunWatch(ctx)
			})
		},
	}
}

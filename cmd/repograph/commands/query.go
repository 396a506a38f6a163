package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/0x5457/repograph/cmd/cmdsfx"
	"github.com/0x5457/repograph/internal/analysis/impact"
	"github.com/0x5457/repograph/internal/query"
	"github.com/0x5457/repograph/internal/semantic"
)

type queryFunc func(ctx context.Context, s *query.Service, args []string) (any, error)

func newQueryCommand(e *env, use, short string, nargs int, fn queryFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, e, func(ctx context.Context, r *cmdsfx.CommandRunner) error {
				return r.RunQuery(ctx, func(ctx context.Context, s *query.Service) (any, error) {
					return fn(ctx, s, args)
				})
			})
		},
	}
}

func newQueryCommands(e *env) []*cobra.Command {
	callees := newQueryCommand(e, "callees <symbol>", "What a symbol calls and where the targets are defined", 1,
		func(ctx context.Context, s *query.Service, args []string) (any, error) {
			return s.Callees(ctx, args[0])
		})
	callers := newQueryCommand(e, "callers <symbol>", "Symbols that call a name, exact matches first", 1,
		func(ctx context.Context, s *query.Service, args []string) (any, error) {
			return s.Callers(ctx, args[0])
		})

	var impactOpt impact.Options
	impactCmd := newQueryCommand(e, "impact <file>", "Callers, tests and endpoints affected by changing a file", 1,
		func(ctx context.Context, s *query.Service, args []string) (any, error) {
			return s.Impact(ctx, args[0], impactOpt)
		})
	impactCmd.Flags().IntVar(&impactOpt.Depth, "depth", impact.DefaultDepth, "reverse traversal depth")
	impactCmd.Flags().BoolVar(&impactOpt.Fuzzy, "fuzzy", false, "also follow fuzzy name matches")

	var limit int
	couplingCmd := newQueryCommand(e, "coupling <file>", "Files most coupled to a file", 1,
		func(ctx context.Context, s *query.Service, args []string) (any, error) {
			return s.Coupling(ctx, args[0], limit)
		})
	couplingCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of files (default 20)")

	tests := newQueryCommand(e, "tests <symbol>", "Candidate tests for a symbol", 1,
		func(ctx context.Context, s *query.Service, args []string) (any, error) {
			return s.TestsFor(ctx, args[0])
		})

	var (
		searchOpt semantic.SearchOptions
		threshold float64
		searchCmd *cobra.Command
	)
	searchCmd = newQueryCommand(e, "search <query>", "Semantic code search by natural language query", 1,
		func(ctx context.Context, s *query.Service, args []string) (any, error) {
			opt := searchOpt
			if searchCmd.Flags().Changed("threshold") {
				opt.Threshold = semantic.Threshold(threshold)
			}
			return s.Search(ctx, args[0], opt)
		})
	searchCmd.Flags().IntVar(&searchOpt.TopK, "top-k", 0, "maximum number of results (default 10)")
	searchCmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum cosine score (default 0.3)")

	stale := newQueryCommand(e, "stale", "Report whether the index is older than the repository", 0,
		func(ctx context.Context, s *query.Service, _ []string) (any, error) {
			return s.Stale(ctx)
		})
	duplicates := newQueryCommand(e, "duplicates", "Clusters of structurally identical functions", 0,
		func(ctx context.Context, s *query.Service, _ []string) (any, error) {
			return s.Duplicates(ctx)
		})
	symbol := newQueryCommand(e, "symbol <name>", "Exact symbol lookup by qualified, dotted or short name", 1,
		func(ctx context.Context, s *query.Service, args []string) (any, error) {
			return s.FindSymbol(ctx, args[0])
		})
	status := newQueryCommand(e, "semantic", "Show whether semantic search is available", 0,
		func(ctx context.Context, s *query.Service, _ []string) (any, error) {
			return s.Semantic(ctx)
		})

	return []*cobra.Command{
		callees, callers, impactCmd, couplingCmd, tests, searchCmd, stale, duplicates, symbol, status,
	}
}

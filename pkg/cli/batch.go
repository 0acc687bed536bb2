package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/lineage/pkg/provenance"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	Direction   string
	Concurrency int
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch <locator|uuid>...",
		Short: "Run independent traversals in parallel",
		Long: `Run one traversal per root concurrently against a shared store.

Results are printed in argument order. The first failure cancels the
remaining traversals.

Examples:
  lineage-cli batch acbd18db4cc2f85cedef654fccc4a4d8+3 zzzzz-4zz18-000000000000002 --direction up --fixture pipeline.yaml --admin
  lineage-cli batch zzzzz-4zz18-000000000000001 --direction down --store sqlite --dsn lineage.db --admin --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Direction, "direction", "up", "traversal direction (up|down)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "maximum traversals in flight")

	return cmd
}

func parseDirection(s string) (provenance.Direction, error) {
	switch s {
	case "up", "upstream", "ancestors":
		return provenance.Upstream, nil
	case "down", "downstream", "descendants":
		return provenance.Downstream, nil
	}
	return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid direction %q: must be up or down", s))
}

func runBatch(ctx context.Context, opts *BatchOptions, cmd *cobra.Command, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	dir, err := parseDirection(opts.Direction)
	if err != nil {
		return err
	}
	if opts.Concurrency < 1 {
		return NewExitError(ExitCommandError, "--concurrency must be at least 1")
	}
	f, err := opts.Filter()
	if err != nil {
		return err
	}

	roots := make([]provenance.Entity, len(args))
	for i, raw := range args {
		if roots[i], err = parseRoot(raw); err != nil {
			return err
		}
	}

	b, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	tracker := provenance.NewTracker(b, provenance.WithLogger(opts.traversalLogger()))
	results := make([]Result, len(roots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, root := range roots {
		g.Go(func() error {
			res, err := traverse(gctx, opts.RootOptions, tracker, f, dir, root)
			if err != nil {
				return fmt.Errorf("%s: %w", root, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return opts.printAll(cmd.OutOrStdout(), results)
}

package cli

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/lineage/pkg/provenance"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// NewAncestorsCommand creates the ancestors command.
func NewAncestorsCommand(opts *RootOptions) *cobra.Command {
	return newLineageCommand(opts, provenance.Upstream, "ancestors", "Show everything an object was derived from", `Walk the provenance graph upstream from a content locator or object id.

Examples:
  lineage-cli ancestors 37b51d194a7513e45b56f6524f2d51f2+3 --fixture pipeline.yaml --admin
  lineage-cli ancestors zzzzz-4zz18-000000000000002 --store sqlite --dsn lineage.db --reader zzzzz-tpzed-000000000000001
  lineage-cli ancestors zzzzz-8i9sb-000000000000001 --store postgres --dsn postgres://localhost/arvados --admin --format json`)
}

// NewDescendantsCommand creates the descendants command.
func NewDescendantsCommand(opts *RootOptions) *cobra.Command {
	return newLineageCommand(opts, provenance.Downstream, "descendants", "Show everything derived from an object", `Walk the provenance graph downstream from a content locator or object id.

Examples:
  lineage-cli descendants acbd18db4cc2f85cedef654fccc4a4d8+3 --fixture pipeline.yaml --admin
  lineage-cli descendants zzzzz-4zz18-000000000000001 --store sqlite --dsn lineage.db --reader zzzzz-tpzed-000000000000001`)
}

func newLineageCommand(opts *RootOptions, dir provenance.Direction, use, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:           use + " <locator|uuid>",
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd.Context(), opts, cmd, dir, args[0])
		},
	}
}

func runLineage(ctx context.Context, opts *RootOptions, cmd *cobra.Command, dir provenance.Direction, raw string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	f, err := opts.Filter()
	if err != nil {
		return err
	}
	root, err := parseRoot(raw)
	if err != nil {
		return err
	}

	b, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := traverse(ctx, opts, provenance.NewTracker(b, provenance.WithLogger(opts.traversalLogger())), f, dir, root)
	if err != nil {
		return err
	}
	return opts.print(cmd.OutOrStdout(), res)
}

func parseRoot(raw string) (provenance.Entity, error) {
	root, err := provenance.ParseEntity(raw)
	if err != nil {
		return provenance.Entity{}, WrapExitError(ExitCommandError, "invalid root "+raw, err)
	}
	return root, nil
}

func traverse(ctx context.Context, opts *RootOptions, tracker *provenance.Tracker, f visibility.Filter, dir provenance.Direction, root provenance.Entity) (Result, error) {
	ctx, cancel := opts.queryContext(ctx)
	defer cancel()

	var (
		visited provenance.Visited
		err     error
	)
	if dir == provenance.Downstream {
		visited, err = tracker.Descendants(ctx, f, root)
	} else {
		visited, err = tracker.Ancestors(ctx, f, root)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{}, WrapExitError(ExitFailure, "query timed out after "+opts.Timeout.String(), err)
	}
	if err != nil {
		return Result{}, WrapExitError(ExitFailure, dir.String()+" query failed", err)
	}

	opts.Logger().WithFields(logrus.Fields{
		"root":      root.String(),
		"direction": dir.String(),
		"nodes":     len(visited),
	}).Debug("traversal complete")
	return newResult(root, dir, visited), nil
}

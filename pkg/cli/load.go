package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/lineage/pkg/storage"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Migrate bool
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a fixture file into a database",
		Long: `Write every record of a YAML fixture into a SQLite or PostgreSQL store.
Records with an existing uuid are replaced.

Examples:
  lineage-cli load --fixture pipeline.yaml --store sqlite --dsn lineage.db
  lineage-cli load --fixture pipeline.yaml --store postgres --dsn postgres://localhost/arvados --migrate`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "create the postgres schema first")

	return cmd
}

func runLoad(ctx context.Context, opts *LoadOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Fixture == "" {
		return NewExitError(ExitCommandError, "--fixture is required")
	}
	if opts.Store != "sqlite" && opts.Store != "postgres" {
		return NewExitError(ExitCommandError, "load needs --store sqlite or --store postgres")
	}
	if opts.DSN == "" {
		return NewExitError(ExitCommandError, "--dsn is required for the "+opts.Store+" store")
	}

	data, err := os.ReadFile(opts.Fixture)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read fixture", err)
	}
	fx, err := storage.ParseFixture(data)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fixture", err)
	}

	cfg := opts.storageConfig()
	cfg.FixturePath = ""
	cfg.PostgresMigrate = opts.Migrate
	b, err := openBackend(ctx, opts.RootOptions, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := storage.LoadFixture(ctx, b.Writer, fx); err != nil {
		return WrapExitError(ExitFailure, "failed to load fixture", err)
	}

	records := len(fx.Records())
	opts.Logger().WithField("records", records).Infof("loaded %s into %s", opts.Fixture, opts.DSN)
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"loaded": records, "store": opts.Store})
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d records loaded\n", records)
	return err
}

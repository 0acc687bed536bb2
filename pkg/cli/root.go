package cli

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/lineage/pkg/observability"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	Store   string
	DSN     string
	Fixture string

	Readers []string
	Admin   bool
	Timeout time.Duration

	logger *logrus.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidStores are the store types the CLI can open.
var ValidStores = []string{"memory", "filesystem", "sqlite", "postgres"}

// NewRootCommand creates the root command for lineage-cli.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lineage-cli",
		Short: "Query data provenance",
		Long: `Query the provenance graph of collections, jobs and links.

Records are read from a YAML fixture (memory store), a directory of
fixture files, a SQLite database or PostgreSQL. Every query runs under a
visibility filter built from --reader and --admin.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !slices.Contains(ValidStores, opts.Store) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid store %q: must be one of %v", opts.Store, ValidStores))
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "memory", "store type (memory|filesystem|sqlite|postgres)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "database path, postgres URL or fixture directory")
	cmd.PersistentFlags().StringVar(&opts.Fixture, "fixture", "", "YAML fixture file")
	cmd.PersistentFlags().StringSliceVar(&opts.Readers, "reader", nil, "user or group uuid whose records are readable (repeatable)")
	cmd.PersistentFlags().BoolVar(&opts.Admin, "admin", false, "read every record")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "abort queries after this long (0 waits forever)")

	// Add subcommands
	cmd.AddCommand(NewAncestorsCommand(opts))
	cmd.AddCommand(NewDescendantsCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))

	return cmd
}

// Filter returns the visibility filter the flags describe
func (o *RootOptions) Filter() (visibility.Filter, error) {
	if o.Admin {
		return visibility.AllowAll(), nil
	}
	f := visibility.ReadableBy(o.Readers...)
	if f.IsEmpty() {
		return visibility.Filter{}, NewExitError(ExitCommandError, "one of --reader or --admin is required")
	}
	return f, nil
}

// Logger returns the diagnostics logger. It is set once flags are parsed.
func (o *RootOptions) Logger() *logrus.Logger {
	if o.logger == nil {
		o.logger = newLogger(io.Discard, false)
	}
	return o.logger
}

// traversalLogger is the logger handed to the store and the tracker. Visits
// are only shown with --verbose.
func (o *RootOptions) traversalLogger() *observability.Logger {
	if !o.Verbose {
		return observability.NewLogger(observability.ErrorLevel, io.Discard)
	}
	return observability.NewLogger(observability.DebugLevel, o.Logger().Out)
}

func newLogger(out io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

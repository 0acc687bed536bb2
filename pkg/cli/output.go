package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/provenance"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query failed (store error, timeout)
	ExitCommandError = 2 // Command error (bad flags, unparseable identifier, missing store)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Result is one traversal as printed by the CLI
type Result struct {
	Root      provenance.Entity  `json:"root"`
	Direction string             `json:"direction"`
	Count     int                `json:"count"`
	Nodes     provenance.Visited `json:"nodes"`
}

func newResult(root provenance.Entity, dir provenance.Direction, visited provenance.Visited) Result {
	return Result{
		Root:      root,
		Direction: dir.String(),
		Count:     len(visited),
		Nodes:     visited,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeText prints one line per node in key order: key, kind, display name.
// With headers each result is introduced by its root.
func writeText(w io.Writer, headers bool, results ...Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, res := range results {
		if headers {
			if i > 0 {
				fmt.Fprintln(tw)
			}
			fmt.Fprintf(tw, "# %s of %s (%d)\n", res.Direction, res.Root, res.Count)
		}
		for _, key := range res.Nodes.Keys() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", key, kindOf(key, res.Nodes[key]), res.Nodes[key].DisplayName())
		}
	}
	return tw.Flush()
}

func kindOf(key string, node provenance.Node) string {
	if _, ok := locator.Parse(key); ok {
		if node.IsSummary() {
			return "collections"
		}
		return "collection"
	}
	if name := locator.ResourceName(key); name != "" {
		return name
	}
	return "object"
}

func (o *RootOptions) print(w io.Writer, res Result) error {
	if o.Format == "json" {
		return writeJSON(w, res)
	}
	return writeText(w, false, res)
}

func (o *RootOptions) printAll(w io.Writer, results []Result) error {
	if o.Format == "json" {
		return writeJSON(w, results)
	}
	return writeText(w, true, results...)
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/lineage/pkg/locator"
)

// ParseResult describes how a string is classified
type ParseResult struct {
	Input string `json:"input"`
	// Form is "locator", "object_id" or "none"
	Form string `json:"form"`

	Canonical string   `json:"canonical,omitempty"`
	Hash      string   `json:"hash,omitempty"`
	Size      int64    `json:"size,omitempty"`
	Hints     []string `json:"hints,omitempty"`

	TypeCode string `json:"type_code,omitempty"`
	Resource string `json:"resource,omitempty"`
	Kind     string `json:"kind,omitempty"`

	// Embedded is the reference a job field holding Input would yield
	Embedded string `json:"embedded,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <string>",
		Short: "Classify a string as a content locator or object id",
		Long: `Show how a string is read as a traversal root and as a job field value.

Examples:
  lineage-cli parse acbd18db4cc2f85cedef654fccc4a4d8+3+Afeedface@565f7ed3
  lineage-cli parse zzzzz-4zz18-000000000000001 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := Parse(args[0])
			if err := opts.printParse(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Form == "none" && res.Embedded == "" {
				return NewExitError(ExitFailure, fmt.Sprintf("%q holds no content locator or object id", args[0]))
			}
			return nil
		},
	}
}

// Parse classifies s
func Parse(s string) ParseResult {
	res := ParseResult{Input: s, Form: "none"}

	if loc, ok := locator.Parse(s); ok {
		res.Form = "locator"
		res.Canonical = loc.Canonical()
		res.Hash = loc.Hash
		res.Size = loc.Size
		res.Hints = loc.Hints
	} else if locator.IsObjectID(s) {
		res.Form = "object_id"
		res.TypeCode = locator.TypeCode(s)
		res.Resource = locator.ResourceName(s)
		res.Kind = locator.Classify(s).String()
	}

	if canonical, ok := locator.Find(s); ok {
		res.Embedded = canonical
	} else if id, ok := locator.FindObjectID(s, locator.IsCollectionType); ok {
		res.Embedded = id
	}
	return res
}

func (o *RootOptions) printParse(w io.Writer, res ParseResult) error {
	if o.Format == "json" {
		return writeJSON(w, res)
	}

	fmt.Fprintf(w, "form:      %s\n", res.Form)
	switch res.Form {
	case "locator":
		fmt.Fprintf(w, "canonical: %s\n", res.Canonical)
		fmt.Fprintf(w, "size:      %d\n", res.Size)
		for _, hint := range res.Hints {
			fmt.Fprintf(w, "hint:      %s\n", hint)
		}
	case "object_id":
		resource := res.Resource
		if resource == "" {
			resource = "unregistered"
		}
		fmt.Fprintf(w, "type:      %s (%s)\n", res.TypeCode, resource)
		fmt.Fprintf(w, "kind:      %s\n", res.Kind)
	}
	if res.Embedded != "" {
		fmt.Fprintf(w, "embedded:  %s\n", res.Embedded)
	}
	return nil
}

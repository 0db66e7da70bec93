package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rcontract/internal/canonical"
	"github.com/roach88/rcontract/internal/resource"
)

// TypeSummary describes a schema that passed validation.
type TypeSummary struct {
	TypeName              string     `json:"type_name"`
	SchemaHash            string     `json:"schema_hash"`
	Entries               int        `json:"entries"`
	PrimaryIdentifier     []string   `json:"primary_identifier"`
	AdditionalIdentifiers [][]string `json:"additional_identifiers,omitempty"`
	CreateOnly            []string   `json:"create_only,omitempty"`
	ReadOnly              []string   `json:"read_only,omitempty"`
	WriteOnly             []string   `json:"write_only,omitempty"`
	Handlers              []string   `json:"handlers"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schema>",
		Short: "Validate a resource type schema",
		Long: `Load a resource type schema (.json, .yaml or .cue), normalize it and
check its resource keywords and JSON Schema.

Exit codes:
  0 - Schema is valid
  2 - Schema unreadable or rejected

Examples:
  rcontract validate ./widget.json
  rcontract validate ./widget.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	typ, err := loadType(formatter, path)
	if err != nil {
		return err
	}
	if _, err := resource.NewValidator(typ); err != nil {
		_ = formatter.Error(ErrCodeSchema, err.Error(), nil)
		return WrapExitError(ExitCommandError, "schema rejected", err)
	}

	summary, err := summarize(typ)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to hash schema", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	writeSummary(formatter.Writer, summary)
	return nil
}

func summarize(typ *resource.Type) (TypeSummary, error) {
	hash, err := canonical.SchemaHash(typ.Schema.Generic())
	if err != nil {
		return TypeSummary{}, err
	}
	summary := TypeSummary{
		TypeName:          typ.Name,
		SchemaHash:        hash,
		Entries:           len(typ.Schema),
		PrimaryIdentifier: pathStrings(typ.PrimaryIdentifierPaths),
		CreateOnly:        pathStrings(typ.CreateOnlyPaths),
		ReadOnly:          pathStrings(typ.ReadOnlyPaths),
		WriteOnly:         pathStrings(typ.WriteOnlyPaths),
		Handlers:          make([]string, 0, len(typ.Handlers)),
	}
	for _, set := range typ.AdditionalIdentifierPaths {
		summary.AdditionalIdentifiers = append(summary.AdditionalIdentifiers, pathStrings(set))
	}
	for action := range typ.Handlers {
		summary.Handlers = append(summary.Handlers, action)
	}
	slices.Sort(summary.Handlers)
	return summary, nil
}

func pathStrings(paths []resource.Path) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

func writeSummary(w io.Writer, s TypeSummary) {
	fmt.Fprintf(w, "✓ %s is valid\n", s.TypeName)
	fmt.Fprintf(w, "  schema hash:        %s\n", s.SchemaHash)
	fmt.Fprintf(w, "  map entries:        %d\n", s.Entries)
	fmt.Fprintf(w, "  primary identifier: %s\n", strings.Join(s.PrimaryIdentifier, ", "))
	for _, set := range s.AdditionalIdentifiers {
		fmt.Fprintf(w, "  additional:         %s\n", strings.Join(set, ", "))
	}
	if len(s.ReadOnly) > 0 {
		fmt.Fprintf(w, "  read only:          %s\n", strings.Join(s.ReadOnly, ", "))
	}
	if len(s.WriteOnly) > 0 {
		fmt.Fprintf(w, "  write only:         %s\n", strings.Join(s.WriteOnly, ", "))
	}
	if len(s.CreateOnly) > 0 {
		fmt.Fprintf(w, "  create only:        %s\n", strings.Join(s.CreateOnly, ", "))
	}
	handlers := "none"
	if len(s.Handlers) > 0 {
		handlers = strings.Join(s.Handlers, ", ")
	}
	fmt.Fprintf(w, "  handlers:           %s\n", handlers)
}

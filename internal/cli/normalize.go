package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rcontract/internal/canonical"
)

// NormalizeOptions holds flags for the normalize command.
type NormalizeOptions struct {
	*RootOptions
	Pointer string // print a single entry
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NormalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "normalize <schema>",
		Short: "Print the canonical schema map",
		Long: `Resolve every $ref, flatten allOf/anyOf/oneOf and break reference
cycles, then print the pointer-keyed canonical map as canonical JSON.

Examples:
  rcontract normalize ./widget.json
  rcontract normalize ./widget.json --pointer '#/definitions/config'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Pointer, "pointer", "", "print only the entry at this schema pointer")

	return cmd
}

func runNormalize(opts *NormalizeOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	typ, err := loadType(formatter, path)
	if err != nil {
		return err
	}

	var out any = typ.Schema.Generic()
	if opts.Pointer != "" {
		node, ok := typ.Schema.Lookup(opts.Pointer)
		if !ok {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("no map entry at %s", opts.Pointer), nil)
		}
		out = node
	}

	data, err := canonical.Marshal(out)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to encode schema map", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	fmt.Fprintln(formatter.Writer, string(data))
	return nil
}

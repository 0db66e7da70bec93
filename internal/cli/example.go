package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rcontract/internal/canonical"
	"github.com/roach88/rcontract/internal/resource"
)

// Example kinds.
const (
	exampleCreate  = "create"
	exampleUpdate  = "update"
	exampleInvalid = "invalid"
)

// ExampleOptions holds flags for the example command.
type ExampleOptions struct {
	*RootOptions
	Kind string
}

// ExampleResult is a generated model and its schema violations.
type ExampleResult struct {
	Kind       string               `json:"kind"`
	Model      resource.Model       `json:"model"`
	Violations []resource.Violation `json:"violations,omitempty"`
}

// NewExampleCommand creates the example command.
func NewExampleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExampleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "example <schema>",
		Short: "Generate an example model",
		Long: `Generate the model the test suite would send for a create, an update
(of the create example) or an invalid create, with overrides and inputs
applied. The model is checked against the schema; violations are
reported but do not fail the command, since overrides may be deliberate.

Examples:
  rcontract example ./widget.json
  rcontract example ./widget.json --kind update --overrides ./overrides.yaml
  rcontract example ./widget.json --export BucketName=my-bucket`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExample(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", exampleCreate, "example kind (create|update|invalid)")
	addExampleFlags(cmd)

	return cmd
}

func runExample(opts *ExampleOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Kind != exampleCreate && opts.Kind != exampleUpdate && opts.Kind != exampleInvalid {
		return formatter.Fail(ExitCommandError, ErrCodeExample, fmt.Sprintf("invalid kind %q: must be create, update or invalid", opts.Kind), nil)
	}
	typ, err := loadType(formatter, path)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(formatter, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	gen, err := newGenerator(formatter, typ, cfg)
	if err != nil {
		return err
	}

	model, err := generateExample(gen, opts.Kind)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeExample, "failed to generate example", err)
	}

	result := ExampleResult{Kind: opts.Kind, Model: model}
	validator, err := resource.NewValidator(typ)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSchema, "schema rejected", err)
	}
	result.Violations = validator.Validate(model)
	for _, v := range result.Violations {
		slog.Warn("example does not match schema", "kind", opts.Kind, "location", v.Location, "message", v.Message)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	data, err := canonical.Marshal(model)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeExample, "failed to encode example", err)
	}
	fmt.Fprintln(formatter.Writer, string(data))
	return nil
}

func generateExample(gen *resource.Generator, kind string) (resource.Model, error) {
	switch kind {
	case exampleUpdate:
		created, err := gen.CreateExample()
		if err != nil {
			return nil, err
		}
		return gen.UpdateExample(created)
	case exampleInvalid:
		return gen.InvalidCreateExample()
	}
	return gen.CreateExample()
}

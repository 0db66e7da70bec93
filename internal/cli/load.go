package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/rcontract/internal/config"
	"github.com/roach88/rcontract/internal/resource"
	"github.com/roach88/rcontract/internal/schema"
)

// flagConfigPaths maps command-line flags to the config paths they set.
var flagConfigPaths = map[string]string{
	"endpoint":        "endpoint",
	"function-name":   "function_name",
	"region":          "region",
	"role-arn":        "role_arn",
	"enforce-timeout": "enforce_timeout",
	"poll-interval":   "poll_interval",
	"request-timeout": "request_timeout",
	"max-rps":         "max_rps",
	"overrides":       "overrides",
	"inputs":          "inputs_dir",
	"scenarios":       "scenarios_dir",
	"trace-db":        "trace_db",
	"filter":          "filter",
	"export":          "exports",
}

// loadType reads and normalizes a schema file. Unreadable files and
// rejected schemas are command errors.
func loadType(f *OutputFormatter, path string) (*resource.Type, error) {
	doc, err := schema.LoadFile(path)
	if err != nil {
		return nil, schemaFailure(f, "failed to load schema", err)
	}
	typ, err := resource.New(doc)
	if err != nil {
		return nil, schemaFailure(f, "schema rejected", err)
	}
	f.VerboseLog("Loaded %s from %s", typ.Name, path)
	return typ, nil
}

func schemaFailure(f *OutputFormatter, message string, err error) error {
	if !schema.IsSpecificationError(err) {
		return f.Fail(ExitCommandError, ErrCodeLoad, message, err)
	}
	details := map[string]string{"pointer": schema.ErrorPointer(err)}
	_ = f.Error(ErrCodeSchema, message+": "+err.Error(), details)
	return WrapExitError(ExitCommandError, message, err)
}

// loadConfig layers the config file, environment and the flags set on
// cmd.
func loadConfig(f *OutputFormatter, opts *RootOptions, cmd *cobra.Command) (*config.Config, error) {
	flags := map[string]any{}
	var flagErr error
	cmd.Flags().Visit(func(fl *pflag.Flag) {
		path, ok := flagConfigPaths[fl.Name]
		if !ok {
			return
		}
		if fl.Name == "export" {
			exports, err := cmd.Flags().GetStringToString("export")
			if err != nil {
				flagErr = err
				return
			}
			flags[path] = exports
			return
		}
		flags[path] = fl.Value.String()
	})
	if flagErr != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid flag", flagErr)
	}

	cfg, err := config.Load(config.Sources{File: opts.Config, Flags: flags})
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	slog.Debug("configuration loaded", "config", cfg)
	return cfg, nil
}

// addExampleFlags registers the flags that shape generated examples.
func addExampleFlags(cmd *cobra.Command) {
	cmd.Flags().String("overrides", "", "overrides file (.json or .yaml) applied to generated examples")
	cmd.Flags().String("inputs", "", "directory of fixed input models (inputs_1_create.json, ...)")
	cmd.Flags().StringToString("export", nil, "template variable for overrides and inputs (key=value, repeatable)")
}

// newGenerator builds an example generator from cfg.
func newGenerator(f *OutputFormatter, typ *resource.Type, cfg *config.Config) (*resource.Generator, error) {
	inputs, err := resource.LoadInputs(cfg.InputsDir, cfg.Exports)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeExample, "failed to load inputs", err)
	}
	return resource.NewGenerator(typ,
		resource.WithOverrides(resource.LoadOverrides(cfg.Overrides, cfg.Exports)),
		resource.WithInputs(inputs),
	), nil
}

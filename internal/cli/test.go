package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/rcontract/internal/config"
	"github.com/roach88/rcontract/internal/contract"
	"github.com/roach88/rcontract/internal/resource"
	"github.com/roach88/rcontract/internal/store"
	"github.com/roach88/rcontract/internal/suite"
	"github.com/roach88/rcontract/internal/transport"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Label string
}

// TestResult is the JSON payload of the test command.
type TestResult struct {
	RunID  string `json:"run_id"`
	Report any    `json:"report"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <schema>",
		Short: "Run the contract suite against a handler",
		Long: `Run the built-in contract scenarios, plus any custom scenarios, against
a resource handler reachable over HTTP. Scenarios whose handlers the schema
does not declare are not selected.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (unreadable schema, invalid configuration, etc.)

Examples:
  rcontract test ./widget.json --endpoint http://127.0.0.1:3001
  rcontract test ./widget.json --filter "create_*"
  rcontract test ./widget.json --trace-db ./trace.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().String("endpoint", "", "handler endpoint URL")
	cmd.Flags().String("function-name", "", "function name sent to the endpoint")
	cmd.Flags().String("region", "", "region sent with each request")
	cmd.Flags().String("role-arn", "", "role ARN sent with each request")
	cmd.Flags().Duration("enforce-timeout", 0, "maximum time an operation may take to reach a terminal status")
	cmd.Flags().Duration("poll-interval", 0, "wait between polls when the handler gives no callback delay")
	cmd.Flags().Duration("request-timeout", 0, "timeout of a single HTTP invocation")
	cmd.Flags().Float64("max-rps", 0, "maximum invocations per second (0 for no limit)")
	cmd.Flags().String("scenarios", "", "directory of custom scenario files")
	cmd.Flags().String("trace-db", "", "SQLite file the exchanges are recorded to")
	cmd.Flags().String("filter", "", "comma-separated scenario name patterns")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label stored with the recorded run")
	addExampleFlags(cmd)

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

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
	if err := preflight(typ, gen); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeExample, "failed to generate example", err)
	}

	scenarios, err := selectScenarios(typ, cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScenarios, "failed to load scenarios", err)
	}
	formatter.VerboseLog("Selected %d scenarios", len(scenarios))

	dsn := cfg.TraceDB
	if dsn == "" {
		dsn = store.MemoryDSN
	}
	st, err := store.Open(dsn)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open trace store", err)
	}
	defer st.Close()

	run, err := st.BeginRun(ctx, typ.Name, opts.Label)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to begin run", err)
	}

	reg := prometheus.NewRegistry()
	metrics, err := contract.NewMetrics(reg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to register metrics", err)
	}

	trace := suite.NewTraceRecorder()
	client := contract.NewClient(typ, newTransport(cfg), clientOptions(cfg,
		contract.WithRecorder(contract.Recorders(trace, st.Recorder(run))),
		contract.WithMetrics(metrics),
	)...)

	started := time.Now()
	report := suite.Run(ctx, suite.NewSession(client, gen, suite.WithTrace(trace)), scenarios)
	logInvocations(reg)
	slog.Info("suite finished", "type", typ.Name, "run", run.ID, "duration", time.Since(started))

	if formatter.Format == "json" {
		if err := outputTestJSON(formatter, run.ID, report); err != nil {
			return err
		}
	} else {
		outputTestText(formatter.Writer, report, opts.Verbose)
	}
	if !report.Passed() {
		_, fail, _ := report.Counts()
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", fail))
	}
	return nil
}

// preflight logs a warning for each schema violation of the create
// example.
func preflight(typ *resource.Type, gen *resource.Generator) error {
	validator, err := resource.NewValidator(typ)
	if err != nil {
		return err
	}
	model, err := gen.CreateExample()
	if err != nil {
		return err
	}
	for _, v := range validator.Validate(model) {
		slog.Warn("create example does not match schema", "location", v.Location, "message", v.Message)
	}
	return nil
}

func selectScenarios(typ *resource.Type, cfg *config.Config) ([]suite.Scenario, error) {
	reg := suite.Builtin()
	if cfg.ScenariosDir != "" {
		custom, err := suite.LoadCustomScenarios(cfg.ScenariosDir)
		if err != nil {
			return nil, err
		}
		for _, sc := range custom {
			if err := reg.Register(sc.Scenario()); err != nil {
				return nil, err
			}
		}
	}
	return reg.Select(typ, cfg.Filter)
}

func newTransport(cfg *config.Config) *transport.HTTPTransport {
	return transport.NewHTTPTransport(cfg.Endpoint,
		transport.WithFunctionName(cfg.FunctionName),
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithMaxRPS(cfg.MaxRPS),
	)
}

func clientOptions(cfg *config.Config, extra ...contract.Option) []contract.Option {
	opts := []contract.Option{
		contract.WithEnforceTimeout(cfg.EnforceTimeout),
		contract.WithPollInterval(cfg.PollInterval),
		contract.WithRegion(cfg.Region),
		contract.WithRoleARN(cfg.RoleARN),
	}
	if cfg.Credentials.IsSet() {
		opts = append(opts, contract.WithCredentials(&contract.Credentials{
			AccessKeyID:     cfg.Credentials.AccessKeyID,
			SecretAccessKey: cfg.Credentials.SecretAccessKey.Value(),
			SessionToken:    cfg.Credentials.SessionToken.Value(),
		}))
	}
	return append(opts, extra...)
}

// logInvocations logs the invocation counters gathered during the run.
func logInvocations(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		slog.Debug("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		if mf.GetName() != "rcontract_invocations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			attrs := []any{"count", m.GetCounter().GetValue()}
			for _, label := range m.GetLabel() {
				attrs = append(attrs, label.GetName(), label.GetValue())
			}
			slog.Debug("invocations", attrs...)
		}
	}
}

func outputTestJSON(f *OutputFormatter, runID string, report *suite.Report) error {
	result := TestResult{RunID: runID, Report: report.Generic()}
	if report.Passed() {
		return f.Success(result)
	}
	_, fail, _ := report.Counts()
	return f.encode(CLIResponse{
		Status: "error",
		Data:   result,
		Error: &CLIError{
			Code:    ErrCodeFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", fail),
		},
	})
}

func outputTestText(w io.Writer, report *suite.Report, verbose bool) {
	for _, res := range report.Results {
		switch res.Status {
		case suite.StatusPass:
			fmt.Fprintf(w, "✓ %s\n", res.Name)
		case suite.StatusSkip:
			fmt.Fprintf(w, "- %s (skipped)\n", res.Name)
			for _, e := range res.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		default:
			fmt.Fprintf(w, "✗ %s\n", res.Name)
			for _, e := range res.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		if verbose {
			for _, ev := range res.Trace {
				fmt.Fprintf(w, "    %s", ev.Action)
				if ev.Status != "" {
					fmt.Fprintf(w, " %s", ev.Status)
				}
				if ev.ErrorCode != "" {
					fmt.Fprintf(w, " [%s]", ev.ErrorCode)
				}
				if ev.Err != "" {
					fmt.Fprintf(w, " %s", ev.Err)
				}
				fmt.Fprintln(w)
			}
		}
	}

	pass, fail, skip := report.Counts()
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "%s: %d passed, %d failed, %d skipped\n", report.TypeName, pass, fail, skip)
}

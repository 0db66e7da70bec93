package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rcontract/internal/canonical"
	"github.com/roach88/rcontract/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	RunID    string
	Scenario string
	List     bool
}

// TraceResult is the JSON payload of the trace command.
type TraceResult struct {
	Run       any   `json:"run"`
	Exchanges []any `json:"exchanges"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <db>",
		Short: "Print recorded handler exchanges",
		Long: `Print the exchanges recorded by "rcontract test --trace-db".

Exchanges are printed in recording order. Without --run the latest run
is shown.

Examples:
  rcontract trace ./trace.db
  rcontract trace ./trace.db --list
  rcontract trace ./trace.db --scenario create_delete
  rcontract trace ./trace.db --run <id> --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (default: latest run)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only show exchanges of this scenario")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	// Open would create an empty log.
	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "trace database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open trace database", err)
	}
	defer st.Close()

	if opts.List {
		return listRuns(ctx, formatter, st)
	}

	run, err := findRun(ctx, st, opts.RunID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to find run", err)
	}

	var records []store.Record
	if opts.Scenario != "" {
		records, err = st.ReadScenario(ctx, run.ID, opts.Scenario)
	} else {
		records, err = st.ReadExchanges(ctx, run.ID)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read exchanges", err)
	}

	if formatter.Format == "json" {
		result := TraceResult{Run: run.Generic(), Exchanges: make([]any, len(records))}
		for i, rec := range records {
			result.Exchanges[i] = rec.Generic()
		}
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, run, records, opts.Verbose)
}

func findRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	if id == "" {
		return st.LatestRun(ctx)
	}
	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("run %s not found", id)
	}
	return run, err
}

func listRuns(ctx context.Context, f *OutputFormatter, st *store.Store) error {
	runs, err := st.ReadRuns(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read runs", err)
	}
	if f.Format == "json" {
		out := make([]any, len(runs))
		for i, r := range runs {
			out[i] = r.Generic()
		}
		return f.Success(out)
	}
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(f.Writer, "%s  %s  %s", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.TypeName)
		if r.Label != "" {
			fmt.Fprintf(f.Writer, "  (%s)", r.Label)
		}
		fmt.Fprintln(f.Writer)
	}
	return nil
}

func outputTraceText(w io.Writer, run store.Run, records []store.Record, verbose bool) error {
	fmt.Fprintf(w, "Run %s: %s\n", run.ID, run.TypeName)
	if run.Label != "" {
		fmt.Fprintf(w, "Label: %s\n", run.Label)
	}
	fmt.Fprintln(w)

	if len(records) == 0 {
		fmt.Fprintln(w, "  (no exchanges)")
		return nil
	}

	scenario := ""
	for _, rec := range records {
		if rec.Scenario != scenario {
			scenario = rec.Scenario
			fmt.Fprintf(w, "=== %s ===\n", displayScenario(scenario))
		}
		fmt.Fprintf(w, "  [%d] %s", rec.Seq, rec.Action)
		if rec.Status != "" {
			fmt.Fprintf(w, " %s", rec.Status)
		}
		if rec.ErrorCode != "" {
			fmt.Fprintf(w, " [%s]", rec.ErrorCode)
		}
		if rec.Message != "" {
			fmt.Fprintf(w, " %s", rec.Message)
		}
		fmt.Fprintln(w)

		if verbose {
			req, err := canonical.Marshal(rec.Request)
			if err != nil {
				return err
			}
			resp, err := canonical.Marshal(rec.Response)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "       Request:  %s\n", req)
			fmt.Fprintf(w, "       Response: %s\n", resp)
		}
	}
	return nil
}

func displayScenario(name string) string {
	if name == "" {
		return "(no scenario)"
	}
	return name
}

package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/rcontract/internal/contract"
)

// Status is the outcome of one scenario.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// TraceEvent is one exchange as seen in a report.
type TraceEvent struct {
	Action    contract.Action           `json:"action"`
	Status    contract.OperationStatus  `json:"status,omitempty"`
	ErrorCode contract.HandlerErrorCode `json:"error_code,omitempty"`
	Err       string                    `json:"error,omitempty"`
}

// Result is the outcome of one scenario.
type Result struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
	Trace    []TraceEvent  `json:"trace,omitempty"`
}

// Report collects the results of a run in execution order.
type Report struct {
	TypeName string   `json:"type_name"`
	Results  []Result `json:"results"`
}

// Counts returns the number of passed, failed and skipped scenarios.
func (r *Report) Counts() (pass, fail, skip int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skip++
		}
	}
	return pass, fail, skip
}

// Passed reports whether no scenario failed.
func (r *Report) Passed() bool {
	_, fail, _ := r.Counts()
	return fail == 0
}

// Generic returns the report without durations, for canonical output and
// golden comparison.
func (r *Report) Generic() any {
	results := make([]any, len(r.Results))
	for i, res := range r.Results {
		entry := map[string]any{
			"name":   res.Name,
			"status": string(res.Status),
		}
		if len(res.Errors) > 0 {
			errs := make([]any, len(res.Errors))
			for j, e := range res.Errors {
				errs[j] = e
			}
			entry["errors"] = errs
		}
		if len(res.Trace) > 0 {
			trace := make([]any, len(res.Trace))
			for j, ev := range res.Trace {
				item := map[string]any{"action": string(ev.Action)}
				if ev.Status != "" {
					item["status"] = string(ev.Status)
				}
				if ev.ErrorCode != "" {
					item["error_code"] = string(ev.ErrorCode)
				}
				if ev.Err != "" {
					item["error"] = ev.Err
				}
				trace[j] = item
			}
			entry["trace"] = trace
		}
		results[i] = entry
	}
	pass, fail, skip := r.Counts()
	return map[string]any{
		"type_name": r.TypeName,
		"results":   results,
		"summary":   map[string]any{"pass": pass, "fail": fail, "skip": skip},
	}
}

// TraceRecorder keeps exchanges per scenario. It implements
// contract.Recorder.
type TraceRecorder struct {
	mu     sync.Mutex
	events map[string][]TraceEvent
}

// NewTraceRecorder creates an empty recorder.
func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{events: make(map[string][]TraceEvent)}
}

// Record implements contract.Recorder.
func (tr *TraceRecorder) Record(ctx context.Context, ex contract.Exchange) error {
	ev := TraceEvent{Action: ex.Action, Status: ex.Event.Status, ErrorCode: ex.Event.ErrorCode}
	if ex.Err != nil {
		ev.Err = ex.Err.Error()
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events[ex.Scenario] = append(tr.events[ex.Scenario], ev)
	return nil
}

// take returns and forgets the events of scenario.
func (tr *TraceRecorder) take(scenario string) []TraceEvent {
	if tr == nil {
		return nil
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	events := tr.events[scenario]
	delete(tr.events, scenario)
	return events
}

// Run executes scenarios in order and collects their results. Exchanges
// are tagged with the scenario name through the context.
func Run(ctx context.Context, s *Session, scenarios []Scenario) *Report {
	report := &Report{TypeName: s.Type().Name, Results: make([]Result, 0, len(scenarios))}
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			report.Results = append(report.Results, Result{
				Name:   sc.Name,
				Status: StatusFail,
				Errors: []string{fmt.Sprintf("not run: %v", ctx.Err())},
			})
			continue
		}
		res := s.runOne(ctx, sc)
		slog.Info("scenario finished",
			"scenario", res.Name,
			"status", res.Status,
			"duration", res.Duration,
		)
		report.Results = append(report.Results, res)
	}
	return report
}

func (s *Session) runOne(ctx context.Context, sc Scenario) (res Result) {
	start := time.Now()
	res = Result{Name: sc.Name, Status: StatusPass}
	defer func() {
		if p := recover(); p != nil {
			res.Status = StatusFail
			res.Errors = append(res.Errors, fmt.Sprintf("panic: %v", p))
		}
		res.Duration = time.Since(start)
		res.Trace = s.trace.take(sc.Name)
	}()

	err := sc.Run(contract.WithScenario(ctx, sc.Name), s)
	switch {
	case err == nil:
	case IsSkip(err):
		var se *SkipError
		errors.As(err, &se)
		res.Status = StatusSkip
		res.Errors = []string{se.Reason}
	default:
		res.Status = StatusFail
		res.Errors = flatten(err)
	}
	return res
}

// flatten splits joined errors into separate messages.
func flatten(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

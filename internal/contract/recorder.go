package contract

import (
	"context"
	"errors"
	"time"
)

// Exchange is one request and the event (or error) it produced.
type Exchange struct {
	Scenario string
	Action   Action
	Request  HandlerRequest
	Event    ProgressEvent
	Err      error
	Duration time.Duration
}

// Recorder receives every exchange a Client performs. Record errors are
// logged and never fail the operation.
type Recorder interface {
	Record(ctx context.Context, ex Exchange) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, ex Exchange) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, ex Exchange) error { return f(ctx, ex) }

// Recorders fans every exchange out to rs in order. Nil entries are
// skipped; every recorder sees the exchange even if an earlier one fails.
func Recorders(rs ...Recorder) Recorder {
	return RecorderFunc(func(ctx context.Context, ex Exchange) error {
		var errs []error
		for _, r := range rs {
			if r == nil {
				continue
			}
			if err := r.Record(ctx, ex); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

type scenarioKey struct{}

// WithScenario tags exchanges made with ctx with a scenario name.
func WithScenario(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, scenarioKey{}, name)
}

// ScenarioFrom returns the scenario name stored by WithScenario.
func ScenarioFrom(ctx context.Context) string {
	name, _ := ctx.Value(scenarioKey{}).(string)
	return name
}

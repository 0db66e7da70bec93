package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/roach88/rcontract/internal/contract"
	"github.com/roach88/rcontract/internal/resource"
)

// Scenario is one contract check.
type Scenario struct {
	// Name identifies the scenario in reports and filters.
	Name string

	// Description says what the scenario checks.
	Description string

	// Actions lists the handlers the scenario calls. A scenario is only
	// selected when the schema declares all of them.
	Actions []contract.Action

	// Run drives the handler through the session.
	Run func(ctx context.Context, s *Session) error
}

// SkipError marks a scenario that does not apply to the resource type.
type SkipError struct {
	Reason string
}

// Error implements the error interface.
func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// Skip returns a SkipError.
func Skip(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip returns true if err is a SkipError.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// Registry holds scenarios in registration order.
type Registry struct {
	scenarios []Scenario
	index     map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds sc. Names must be unique.
func (r *Registry) Register(sc Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if sc.Run == nil {
		return fmt.Errorf("scenario %s: run function is required", sc.Name)
	}
	if _, exists := r.index[sc.Name]; exists {
		return fmt.Errorf("scenario %s is already registered", sc.Name)
	}
	r.index[sc.Name] = len(r.scenarios)
	r.scenarios = append(r.scenarios, sc)
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(sc Scenario) {
	if err := r.Register(sc); err != nil {
		panic(err)
	}
}

// All returns every scenario in registration order.
func (r *Registry) All() []Scenario {
	out := make([]Scenario, len(r.scenarios))
	copy(out, r.scenarios)
	return out
}

// Lookup returns the scenario called name.
func (r *Registry) Lookup(name string) (Scenario, bool) {
	i, ok := r.index[name]
	if !ok {
		return Scenario{}, false
	}
	return r.scenarios[i], true
}

// Select returns the scenarios whose actions t declares handlers for and
// whose name matches filter. filter is a comma-separated list of glob
// patterns; empty matches everything. A type without handlers selects
// nothing.
func (r *Registry) Select(t *resource.Type, filter string) ([]Scenario, error) {
	patterns, err := parseFilter(filter)
	if err != nil {
		return nil, err
	}
	if len(t.Handlers) == 0 {
		slog.Warn("schema declares no handlers, no scenarios selected", "type", t.Name)
		return nil, nil
	}

	var out []Scenario
	for _, sc := range r.scenarios {
		if !matchesFilter(sc.Name, patterns) {
			continue
		}
		if missing := missingHandlers(t, sc.Actions); len(missing) > 0 {
			slog.Debug("scenario excluded, handlers not declared", "scenario", sc.Name, "missing", missing)
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

func parseFilter(filter string) ([]string, error) {
	var patterns []string
	for _, p := range strings.Split(filter, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid scenario filter %q: %w", p, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func matchesFilter(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

func missingHandlers(t *resource.Type, actions []contract.Action) []contract.Action {
	var missing []contract.Action
	for _, a := range actions {
		if !t.SupportsAction(string(a)) {
			missing = append(missing, a)
		}
	}
	return missing
}

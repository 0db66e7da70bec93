package suite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rcontract/internal/contract"
	"github.com/roach88/rcontract/internal/resource"
)

// CustomScenario is a scenario written in YAML.
type CustomScenario struct {
	// Name uniquely identifies the scenario.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Actions lists the handlers the scenario needs (lower or upper case).
	Actions []string `yaml:"actions"`

	// Steps run in order. Every resource created by a step is deleted
	// when the scenario ends.
	Steps []CustomStep `yaml:"steps"`
}

// CustomStep is one handler call.
type CustomStep struct {
	// Action is the handler action.
	Action string `yaml:"action"`

	// Model selects the request model, see the Model* constants.
	Model string `yaml:"model"`

	// Expect is the required terminal outcome.
	Expect CustomExpect `yaml:"expect"`
}

// CustomExpect is the expected outcome of a step.
type CustomExpect struct {
	Status    string `yaml:"status"`
	ErrorCode string `yaml:"error_code,omitempty"`
}

// Model sources for custom steps.
const (
	// ModelCreate is a fresh create example, reused by later steps.
	ModelCreate = "create"
	// ModelUpdate is an update example derived from the last returned model.
	ModelUpdate = "update"
	// ModelInvalid is the invalid create example.
	ModelInvalid = "invalid"
	// ModelPrevious is the last model returned by the handler.
	ModelPrevious = "previous"
	// ModelIdentifier is the primary identifier of the last returned model.
	ModelIdentifier = "identifier"
)

var modelSources = []string{ModelCreate, ModelUpdate, ModelInvalid, ModelPrevious, ModelIdentifier}

// LoadCustomScenario reads a scenario YAML file. Unknown fields are
// rejected so typos surface as errors.
func LoadCustomScenario(path string) (*CustomScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc CustomScenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateCustom(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &sc, nil
}

// LoadCustomScenarios reads every *.yaml and *.yml file in dir, sorted by
// file name. A missing directory yields no scenarios.
func LoadCustomScenarios(dir string) ([]*CustomScenario, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("scenario directory not found", "dir", dir)
		return nil, nil
	}
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	slices.Sort(files)

	out := make([]*CustomScenario, 0, len(files))
	for _, f := range files {
		sc, err := LoadCustomScenario(f)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func validateCustom(sc *CustomScenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if sc.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(sc.Actions) == 0 {
		return fmt.Errorf("actions list is required and must be non-empty")
	}
	for i, a := range sc.Actions {
		if _, err := contract.ParseAction(a); err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range sc.Steps {
		if step.Action == "" {
			return fmt.Errorf("steps[%d]: action is required", i)
		}
		if _, err := contract.ParseAction(step.Action); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if !slices.Contains(modelSources, step.Model) {
			return fmt.Errorf("steps[%d]: model must be one of %v, got %q", i, modelSources, step.Model)
		}
		if step.Expect.Status == "" {
			return fmt.Errorf("steps[%d].expect: status is required", i)
		}
		status, err := contract.ParseStatus(step.Expect.Status)
		if err != nil {
			return fmt.Errorf("steps[%d].expect: %w", i, err)
		}
		if !status.Terminal() {
			return fmt.Errorf("steps[%d].expect: status must be SUCCESS or FAILED", i)
		}
		if step.Expect.ErrorCode != "" {
			if status != contract.StatusFailed {
				return fmt.Errorf("steps[%d].expect: error_code requires status FAILED", i)
			}
			if !contract.HandlerErrorCode(step.Expect.ErrorCode).Valid() {
				return fmt.Errorf("steps[%d].expect: unknown error code %q", i, step.Expect.ErrorCode)
			}
		}
	}
	return nil
}

// Scenario converts sc into a runnable scenario.
func (sc *CustomScenario) Scenario() Scenario {
	actions := make([]contract.Action, 0, len(sc.Actions))
	for _, a := range sc.Actions {
		action, _ := contract.ParseAction(a)
		actions = append(actions, action)
	}
	return Scenario{
		Name:        sc.Name,
		Description: sc.Description,
		Actions:     actions,
		Run:         sc.run,
	}
}

// customRun is the state of one custom scenario execution.
type customRun struct {
	s        *Session
	request  resource.Model
	previous resource.Model
	created  []resource.Model
}

func (sc *CustomScenario) run(ctx context.Context, s *Session) (err error) {
	r := &customRun{s: s}
	defer func() { err = r.cleanup(ctx, err) }()

	for i, step := range sc.Steps {
		if err := r.step(ctx, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
	}
	return nil
}

func (r *customRun) step(ctx context.Context, step CustomStep) error {
	action, _ := contract.ParseAction(step.Action)
	expected, _ := contract.ParseStatus(step.Expect.Status)

	model, err := r.model(step.Model)
	if err != nil {
		return err
	}
	var previous resource.Model
	if action == contract.ActionUpdate {
		previous = r.previous
	}

	status, event, code, err := r.s.Client.CallAndAssert(ctx, action, expected, model, previous)
	// A created resource belongs to cleanup whatever the step expected.
	if action == contract.ActionCreate && event.Status == contract.StatusSuccess && event.ResourceModel != nil {
		r.created = append(r.created, event.ResourceModel)
	}
	if err != nil {
		return err
	}
	if step.Expect.ErrorCode != "" && code != contract.HandlerErrorCode(step.Expect.ErrorCode) {
		return &contract.ContractError{
			Kind:      contract.KindUnexpectedStatus,
			Action:    action,
			Expected:  expected,
			Actual:    status,
			ErrorCode: code,
			Message:   fmt.Sprintf("expected error code %s: %s", step.Expect.ErrorCode, event.Message),
			Model:     model,
		}
	}
	if status != contract.StatusSuccess {
		return nil
	}

	switch action {
	case contract.ActionCreate, contract.ActionRead, contract.ActionUpdate:
		r.previous = event.ResourceModel
	case contract.ActionDelete:
		r.forget(model)
	}
	return nil
}

func (r *customRun) model(source string) (resource.Model, error) {
	switch source {
	case ModelCreate:
		if r.request == nil {
			req, err := r.s.Generator.CreateExample()
			if err != nil {
				return nil, fmt.Errorf("create example: %w", err)
			}
			r.request = req
		}
		return r.request, nil
	case ModelInvalid:
		return r.s.Generator.InvalidCreateExample()
	case ModelUpdate, ModelPrevious, ModelIdentifier:
		if r.previous == nil {
			return nil, fmt.Errorf("model %q needs an earlier successful create, read or update", source)
		}
		switch source {
		case ModelUpdate:
			return r.s.Generator.UpdateExample(r.previous)
		case ModelIdentifier:
			return r.s.Client.PrimaryIdentifierModel(r.previous), nil
		}
		return r.previous, nil
	}
	return nil, fmt.Errorf("unknown model source %q", source)
}

func (r *customRun) forget(deleted resource.Model) {
	paths := r.s.Type().PrimaryIdentifierPaths
	r.created = slices.DeleteFunc(r.created, func(m resource.Model) bool {
		return contract.IsPrimaryIdentifierEqual(paths, m, deleted)
	})
}

// cleanup deletes every resource the scenario created and did not delete.
func (r *customRun) cleanup(ctx context.Context, err error) error {
	for _, m := range r.created {
		err = r.s.teardown(ctx, m, err)
	}
	return err
}

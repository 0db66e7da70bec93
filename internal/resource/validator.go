package resource

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/kaptinlin/jsonschema"
)

// Validator checks models against the raw resource schema.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles the type's raw schema document. Resource-specific
// keywords (primaryIdentifier, handlers, ...) are ignored by the compiler.
func NewValidator(t *Type) (*Validator, error) {
	data, err := json.Marshal(t.Document.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	compiled, err := jsonschema.NewCompiler().Compile(data)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Violation is one failed schema keyword.
type Violation struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// Validate returns the violations of model, sorted by location. An empty
// result means the model is valid.
func (v *Validator) Validate(model Model) []Violation {
	// Round-trip so Go ints and nested types match decoded JSON.
	data, err := json.Marshal(model)
	if err != nil {
		return []Violation{{Location: "#", Message: err.Error()}}
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return []Violation{{Location: "#", Message: err.Error()}}
	}
	result := v.compiled.Validate(generic)
	if result.Valid {
		return nil
	}
	var out []Violation
	for loc, e := range result.Errors {
		out = append(out, Violation{Location: loc, Message: fmt.Sprint(e)})
	}
	if len(out) == 0 {
		out = append(out, Violation{Location: "#", Message: "model does not match schema"})
	}
	slices.SortFunc(out, func(a, b Violation) int {
		if a.Location < b.Location {
			return -1
		}
		if a.Location > b.Location {
			return 1
		}
		return 0
	})
	return out
}

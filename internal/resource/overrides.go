package resource

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/kaptinlin/jsonschema"
	"github.com/mohae/deepcopy"

	"github.com/roach88/rcontract/internal/canonical"
	"github.com/roach88/rcontract/internal/pointer"
	"github.com/roach88/rcontract/internal/schema"
)

// Override actions.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
)

// overridesSchema is what an overrides file must look like after
// rendering: a CREATE and/or UPDATE object and nothing else.
const overridesSchema = `{
  "type": "object",
  "properties": {
    "CREATE": {"type": "object"},
    "UPDATE": {"type": "object"}
  },
  "anyOf": [{"required": ["CREATE"]}, {"required": ["UPDATE"]}],
  "additionalProperties": false
}`

// Overrides maps an action to model pointers ("/Name", "/Config/Port") and
// the values forced at them.
type Overrides map[string]map[string]any

// EmptyOverrides is the override set used when none is configured or the
// configured one is unusable.
func EmptyOverrides() Overrides {
	return Overrides{ActionCreate: {}}
}

// Apply writes the overrides for action into model. Pointers that cannot
// be applied are logged and skipped.
func (o Overrides) Apply(action string, model Model) {
	items := o[action]
	for _, ptr := range canonical.SortedKeys(items) {
		segments, err := pointer.SplitPath(ptr)
		if err != nil || len(segments) == 0 {
			slog.Warn("override pointer is invalid, skipping", "action", action, "pointer", ptr)
			continue
		}
		if err := Set(model, Path(segments), deepcopy.Copy(items[ptr])); err != nil {
			slog.Warn("override could not be applied", "action", action, "pointer", ptr, "error", err)
		}
	}
}

// LoadOverrides reads an overrides file (.json or .yaml). The file is
// rendered as a text/template with sprig functions and exports as data
// before decoding. A missing path yields EmptyOverrides silently; an
// unusable file yields EmptyOverrides with a warning.
func LoadOverrides(path string, exports map[string]string) Overrides {
	if path == "" {
		return EmptyOverrides()
	}
	overrides, err := ParseOverridesFile(path, exports)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("override file not found, no overrides will be applied", "path", path)
		return EmptyOverrides()
	}
	if err != nil {
		slog.Warn("override file invalid, no overrides will be applied", "path", path, "error", err)
		return EmptyOverrides()
	}
	return overrides
}

// ParseOverridesFile is the strict form of LoadOverrides.
func ParseOverridesFile(path string, exports map[string]string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rendered, err := renderTemplate(path, data, exports)
	if err != nil {
		return nil, err
	}
	raw, err := schema.DecodeBytes(path, rendered)
	if err != nil {
		return nil, err
	}
	if err := validateOverrides(raw); err != nil {
		return nil, err
	}

	out := EmptyOverrides()
	for action, items := range raw {
		entries, _ := items.(map[string]any)
		valid := make(map[string]any, len(entries))
		for ptr, value := range entries {
			if _, err := pointer.SplitPath(ptr); err != nil {
				slog.Warn("override pointer is invalid, skipping", "action", action, "pointer", ptr)
				continue
			}
			valid[ptr] = value
		}
		out[action] = valid
	}
	return out, nil
}

func renderTemplate(name string, data []byte, exports map[string]string) ([]byte, error) {
	if !bytes.Contains(data, []byte("{{")) {
		return data, nil
	}
	vars := make(map[string]any, len(exports))
	for k, v := range exports {
		vars[k] = v
	}
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("template execution error: %w", err)
	}
	return buf.Bytes(), nil
}

func validateOverrides(raw map[string]any) error {
	compiled, err := jsonschema.NewCompiler().Compile([]byte(overridesSchema))
	if err != nil {
		return fmt.Errorf("failed to compile overrides schema: %w", err)
	}
	result := compiled.Validate(raw)
	if !result.Valid {
		return fmt.Errorf("overrides do not match the expected shape: %v", result.Errors)
	}
	return nil
}

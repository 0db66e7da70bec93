package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Load error codes.
const (
	ErrCodeNotFound    = "E_NOT_FOUND"
	ErrCodeUnsupported = "E_UNSUPPORTED_FORMAT"
	ErrCodeDecode      = "E_DECODE"
	ErrCodeBuildFailed = "E_CUE_BUILD"
)

// LoadError reports a schema file that could not be read or decoded.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadFile reads a resource schema from path. The decoder follows the
// extension: .json, .yaml/.yml or .cue.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading schema: %v", err)}
	}
	raw, err := DecodeBytes(path, data)
	if err != nil {
		return nil, err
	}
	return ParseDocument(raw)
}

// DecodeBytes decodes a schema document into JSON-shaped data
// (map[string]any, []any, float64, string, bool, nil). name selects the
// decoder by extension and labels CUE positions.
func DecodeBytes(name string, data []byte) (map[string]any, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		return decodeJSON(data)
	case ".yaml", ".yml":
		return decodeYAML(data)
	case ".cue":
		return decodeCUE(name, data)
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported schema extension %q", ext)}
	}
}

func decodeJSON(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("decoding JSON: %v", err)}
	}
	if raw == nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: "schema document must be an object"}
	}
	return raw, nil
}

// decodeYAML decodes YAML and round-trips it through JSON so numbers and
// nested maps take the same shapes as a JSON document.
func decodeYAML(data []byte) (map[string]any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("decoding YAML: %v", err)}
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: fmt.Sprintf("YAML is not JSON-compatible: %v", err)}
	}
	return decodeJSON(encoded)
}

func decodeCUE(name string, data []byte) (map[string]any, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(name))
	if err := value.Err(); err != nil {
		return nil, cueLoadError("compiling CUE", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError("CUE schema is not concrete", err)
	}
	encoded, err := value.MarshalJSON()
	if err != nil {
		return nil, cueLoadError("exporting CUE", err)
	}
	return decodeJSON(encoded)
}

func cueLoadError(msg string, err error) *LoadError {
	le := &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("%s: %v", msg, err)}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

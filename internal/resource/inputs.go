package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/roach88/rcontract/internal/schema"
)

// Input file names inside an inputs directory.
const (
	InputCreateFile  = "inputs_1_create.json"
	InputUpdateFile  = "inputs_1_update.json"
	InputInvalidFile = "inputs_1_invalid.json"
)

// Inputs are fixed example models used in place of synthesized ones. Any
// of them may be nil.
type Inputs struct {
	Create  Model
	Update  Model
	Invalid Model
}

// LoadInputs reads the input files from dir. A missing directory or file
// leaves the corresponding model nil. Files are rendered with exports the
// same way as overrides.
func LoadInputs(dir string, exports map[string]string) (*Inputs, error) {
	if dir == "" {
		return nil, nil
	}
	in := &Inputs{}
	targets := []struct {
		file string
		dst  *Model
	}{
		{InputCreateFile, &in.Create},
		{InputUpdateFile, &in.Update},
		{InputInvalidFile, &in.Invalid},
	}
	found := false
	for _, target := range targets {
		path := filepath.Join(dir, target.file)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		rendered, err := renderTemplate(path, data, exports)
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", path, err)
		}
		model, err := schema.DecodeBytes(path, rendered)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		*target.dst = model
		found = true
	}
	if !found {
		return nil, nil
	}
	return in, nil
}

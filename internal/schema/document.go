package schema

import (
	"fmt"
	"strings"
)

// Handler is the metadata a resource schema declares for one action.
type Handler struct {
	Permissions      []string `json:"permissions" yaml:"permissions"`
	TimeoutInMinutes int      `json:"timeoutInMinutes,omitempty" yaml:"timeoutInMinutes,omitempty"`
}

// Document is a loaded resource type schema. Raw keeps the full decoded
// document for the normalizer and the model validator; the typed fields are
// extracted from it once and never change.
type Document struct {
	TypeName              string
	Description           string
	Required              []string
	PrimaryIdentifier     []string
	AdditionalIdentifiers [][]string
	CreateOnlyProperties  []string
	ReadOnlyProperties    []string
	WriteOnlyProperties   []string
	Handlers              map[string]Handler
	Raw                   map[string]any
}

// ParseDocument extracts the typed fields of a resource schema.
// primaryIdentifier is mandatory and every listed path must be a
// "/properties/..." pointer.
func ParseDocument(raw map[string]any) (*Document, error) {
	doc := &Document{Raw: raw}

	doc.TypeName, _ = raw["typeName"].(string)
	doc.Description, _ = raw["description"].(string)

	var err error
	if doc.Required, err = stringList(raw, "required"); err != nil {
		return nil, err
	}
	if doc.PrimaryIdentifier, err = pathList(raw, "primaryIdentifier"); err != nil {
		return nil, err
	}
	if len(doc.PrimaryIdentifier) == 0 {
		return nil, &ConstraintError{Pointer: "#/primaryIdentifier", Message: "primaryIdentifier must list at least one property"}
	}
	if doc.CreateOnlyProperties, err = pathList(raw, "createOnlyProperties"); err != nil {
		return nil, err
	}
	if doc.ReadOnlyProperties, err = pathList(raw, "readOnlyProperties"); err != nil {
		return nil, err
	}
	if doc.WriteOnlyProperties, err = pathList(raw, "writeOnlyProperties"); err != nil {
		return nil, err
	}
	if doc.AdditionalIdentifiers, err = additionalIdentifiers(raw); err != nil {
		return nil, err
	}
	if doc.Handlers, err = handlers(raw); err != nil {
		return nil, err
	}
	return doc, nil
}

func stringList(raw map[string]any, key string) ([]string, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &ConstraintError{Pointer: "#/" + key, Message: "must be a list of strings"}
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, &ConstraintError{Pointer: fmt.Sprintf("#/%s/%d", key, i), Message: "must be a string"}
		}
		out = append(out, s)
	}
	return out, nil
}

func pathList(raw map[string]any, key string) ([]string, error) {
	paths, err := stringList(raw, key)
	if err != nil {
		return nil, err
	}
	for i, p := range paths {
		if !strings.HasPrefix(p, "/properties/") {
			return nil, &ConstraintError{
				Pointer: fmt.Sprintf("#/%s/%d", key, i),
				Message: fmt.Sprintf("path %q must start with /properties/", p),
			}
		}
	}
	return paths, nil
}

func additionalIdentifiers(raw map[string]any) ([][]string, error) {
	v, ok := raw["additionalIdentifiers"]
	if !ok {
		return nil, nil
	}
	sets, ok := v.([]any)
	if !ok {
		return nil, &ConstraintError{Pointer: "#/additionalIdentifiers", Message: "must be a list of path lists"}
	}
	out := make([][]string, 0, len(sets))
	for i, set := range sets {
		paths, err := pathList(map[string]any{fmt.Sprintf("additionalIdentifiers/%d", i): set}, fmt.Sprintf("additionalIdentifiers/%d", i))
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, &ConstraintError{Pointer: fmt.Sprintf("#/additionalIdentifiers/%d", i), Message: "identifier set must not be empty"}
		}
		out = append(out, paths)
	}
	return out, nil
}

func handlers(raw map[string]any) (map[string]Handler, error) {
	v, ok := raw["handlers"]
	if !ok {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ConstraintError{Pointer: "#/handlers", Message: "must be an object"}
	}
	out := make(map[string]Handler, len(m))
	for name, hv := range m {
		h := Handler{}
		entry, ok := hv.(map[string]any)
		if !ok {
			return nil, &ConstraintError{Pointer: "#/handlers/" + name, Message: "must be an object"}
		}
		perms, err := stringList(entry, "permissions")
		if err != nil {
			return nil, &ConstraintError{Pointer: "#/handlers/" + name + "/permissions", Message: "must be a list of strings"}
		}
		h.Permissions = perms
		switch t := entry["timeoutInMinutes"].(type) {
		case nil:
		case float64:
			h.TimeoutInMinutes = int(t)
		case int:
			h.TimeoutInMinutes = t
		default:
			return nil, &ConstraintError{Pointer: "#/handlers/" + name + "/timeoutInMinutes", Message: "must be an integer"}
		}
		out[strings.ToLower(name)] = h
	}
	return out, nil
}

// Normalize normalizes the document's raw schema.
func (d *Document) Normalize() (Map, error) {
	return Normalize(d.Raw)
}

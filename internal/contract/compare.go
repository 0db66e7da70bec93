package contract

import (
	"fmt"
	"slices"

	"github.com/roach88/rcontract/internal/canonical"
	"github.com/roach88/rcontract/internal/resource"
)

// CompareRequestedModel checks that every value set in requested comes back
// unchanged in actual. readOnly and writeOnly properties are not compared;
// lists are compared element by element.
func (c *Client) CompareRequestedModel(requested, actual resource.Model) error {
	return CompareModels(c.typ, requested, actual)
}

// CompareModels is CompareRequestedModel for an explicit type.
func CompareModels(t *resource.Type, requested, actual resource.Model) error {
	if err := compareObject(t, nil, requested, actual); err != nil {
		return &ContractError{
			Kind:    KindModelMismatch,
			Message: err.Error(),
			Model:   actual,
		}
	}
	return nil
}

func compareObject(t *resource.Type, path resource.Path, requested, actual map[string]any) error {
	for _, key := range canonical.SortedKeys(requested) {
		child := append(slices.Clone(path), key)
		if skipCompare(t, child) {
			continue
		}
		got, ok := actual[key]
		if !ok {
			return fmt.Errorf("%s: requested %s, missing from returned model", child, render(requested[key]))
		}
		if err := compareValue(t, child, requested[key], got); err != nil {
			return err
		}
	}
	return nil
}

func compareValue(t *resource.Type, path resource.Path, requested, actual any) error {
	switch want := requested.(type) {
	case map[string]any:
		got, ok := actual.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: requested an object, got %s", path, render(actual))
		}
		return compareObject(t, path, want, got)
	case []any:
		got, ok := actual.([]any)
		if !ok {
			return fmt.Errorf("%s: requested a list, got %s", path, render(actual))
		}
		if len(want) != len(got) {
			return fmt.Errorf("%s: requested %d items, got %d", path, len(want), len(got))
		}
		for i := range want {
			if err := compareValue(t, path, want[i], got[i]); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		return nil
	default:
		if !canonical.Equal(requested, actual) {
			return fmt.Errorf("%s: requested %s, got %s", path, render(requested), render(actual))
		}
		return nil
	}
}

func skipCompare(t *resource.Type, p resource.Path) bool {
	return t.IsReadOnly(p) || t.IsWriteOnly(p)
}

func render(v any) string {
	data, err := canonical.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

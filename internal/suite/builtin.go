package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rcontract/internal/contract"
	"github.com/roach88/rcontract/internal/resource"
)

const (
	create = contract.ActionCreate
	read   = contract.ActionRead
	update = contract.ActionUpdate
	del    = contract.ActionDelete
	list   = contract.ActionList
)

// Builtin returns a registry holding the built-in scenarios.
func Builtin() *Registry {
	r := NewRegistry()
	for _, sc := range builtinScenarios() {
		r.MustRegister(sc)
	}
	return r
}

func builtinScenarios() []Scenario {
	return []Scenario{
		{
			Name:        "create_delete",
			Description: "create returns the requested model and delete removes it",
			Actions:     []contract.Action{create, del},
			Run:         createDelete,
		},
		{
			Name:        "invalid_create",
			Description: "create with a readOnly property set fails with InvalidRequest",
			Actions:     []contract.Action{create},
			Run:         invalidCreate,
		},
		{
			Name:        "create_duplicate",
			Description: "a second create with the same identifier fails with AlreadyExists",
			Actions:     []contract.Action{create},
			Run:         createDuplicate,
		},
		{
			Name:        "create_read_success",
			Description: "read returns the created model",
			Actions:     []contract.Action{create, read},
			Run:         createReadSuccess,
		},
		{
			Name:        "create_list_success",
			Description: "list contains the created model",
			Actions:     []contract.Action{create, list, read},
			Run:         createListSuccess,
		},
		{
			Name:        "create_read_additional_identifier",
			Description: "read by additional identifier succeeds",
			Actions:     []contract.Action{create, read},
			Run:         createReadAdditionalIdentifier,
		},
		{
			Name:        "create_update_noop",
			Description: "update with the unchanged model fails with NoOperationToPerform",
			Actions:     []contract.Action{create, update},
			Run:         createUpdateNoop,
		},
		{
			Name:        "create_delete_read_not_found",
			Description: "read after delete fails with NotFound",
			Actions:     []contract.Action{create, del, read},
			Run:         createDeleteReadNotFound,
		},
		{
			Name:        "read_without_create",
			Description: "read of a resource that was never created fails with NotFound",
			Actions:     []contract.Action{read},
			Run:         readWithoutCreate,
		},
		{
			Name:        "update_read_success",
			Description: "update keeps the identifier and read returns the updated model",
			Actions:     []contract.Action{update, read},
			Run:         updateReadSuccess,
		},
		{
			Name:        "update_list_success",
			Description: "update keeps the identifier and list contains the updated model",
			Actions:     []contract.Action{update, list},
			Run:         updateListSuccess,
		},
		{
			Name:        "update_without_create",
			Description: "update of a resource that was never created fails with NotFound",
			Actions:     []contract.Action{update},
			Run:         updateWithoutCreate,
		},
		{
			Name:        "delete_without_create",
			Description: "delete of a resource that was never created fails with NotFound",
			Actions:     []contract.Action{del},
			Run:         deleteWithoutCreate,
		},
	}
}

func requireWritableIdentifier(s *Session) error {
	if !s.Type().HasWritableIdentifier() {
		return Skip("no writable primary identifier")
	}
	return nil
}

func createDelete(ctx context.Context, s *Session) error {
	return s.WithCreatedResource(ctx, func(context.Context, *Fixture) error { return nil })
}

func invalidCreate(ctx context.Context, s *Session) error {
	if len(s.Type().ReadOnlyPaths) == 0 {
		return Skip("no readOnly properties")
	}
	model, err := s.Generator.InvalidCreateExample()
	if err != nil {
		return fmt.Errorf("invalid create example: %w", err)
	}
	defer func() {
		// A handler that wrongly accepted the model may have created it.
		ev, err := s.Client.Call(context.WithoutCancel(ctx), contract.ActionDelete, model, nil)
		slog.Debug("best-effort delete after invalid create", "status", ev.Status, "error_code", ev.ErrorCode, "error", err)
	}()
	_, err = s.Client.AssertFailure(ctx, create, contract.ErrorInvalidRequest, model, nil)
	return err
}

func createDuplicate(ctx context.Context, s *Session) error {
	if err := requireWritableIdentifier(s); err != nil {
		return err
	}
	return s.WithCreatedResource(ctx, func(ctx context.Context, f *Fixture) error {
		_, err := s.Client.AssertFailure(ctx, create, contract.ErrorAlreadyExists, f.Request, nil)
		return err
	})
}

func createReadSuccess(ctx context.Context, s *Session) error {
	return s.WithCreatedResource(ctx, func(ctx context.Context, f *Fixture) error {
		_, err := s.ReadSuccess(ctx, f.Created)
		return err
	})
}

func createListSuccess(ctx context.Context, s *Session) error {
	return s.WithCreatedResource(ctx, func(ctx context.Context, f *Fixture) error {
		if err := s.InList(ctx, f.Created); err != nil {
			return err
		}
		_, err := s.ReadSuccess(ctx, f.Created)
		return err
	})
}

func createReadAdditionalIdentifier(ctx context.Context, s *Session) error {
	paths := s.Type().AdditionalIdentifierUnion()
	if len(paths) == 0 {
		return Skip("no additional identifiers")
	}
	return s.WithCreatedResource(ctx, func(ctx context.Context, f *Fixture) error {
		_, err := s.Client.ReadResource(ctx, resource.ModelWithPaths(f.Created, paths))
		return err
	})
}

func createUpdateNoop(ctx context.Context, s *Session) error {
	return s.WithCreatedResource(ctx, func(ctx context.Context, f *Fixture) error {
		_, err := s.Client.AssertFailure(ctx, update, contract.ErrorNoOperationToPerform, f.Created, f.Created)
		return err
	})
}

func createDeleteReadNotFound(ctx context.Context, s *Session) (err error) {
	f, err := s.newFixture()
	if err != nil {
		return err
	}
	deleted := false
	defer func() {
		if !deleted {
			err = s.release(ctx, f, err)
		}
	}()

	if err := s.create(ctx, f); err != nil {
		return err
	}
	ids := s.Client.PrimaryIdentifierModel(f.Created)
	if err := s.Client.DeleteResource(ctx, ids); err != nil {
		return err
	}
	deleted = true
	_, err = s.Client.AssertFailure(ctx, read, contract.ErrorNotFound, ids, nil)
	return err
}

func readWithoutCreate(ctx context.Context, s *Session) error {
	if err := requireWritableIdentifier(s); err != nil {
		return err
	}
	model, err := s.Generator.CreateExample()
	if err != nil {
		return fmt.Errorf("create example: %w", err)
	}
	_, err = s.Client.AssertFailure(ctx, read, contract.ErrorNotFound, s.Client.PrimaryIdentifierModel(model), nil)
	return err
}

func updateReadSuccess(ctx context.Context, s *Session) error {
	return s.WithUpdatedResource(ctx, func(ctx context.Context, f *Fixture) error {
		if err := s.SameIdentifier(f.Created, f.Updated); err != nil {
			return err
		}
		_, err := s.ReadSuccess(ctx, f.Updated)
		return err
	})
}

func updateListSuccess(ctx context.Context, s *Session) error {
	return s.WithUpdatedResource(ctx, func(ctx context.Context, f *Fixture) error {
		return errors.Join(s.SameIdentifier(f.Created, f.Updated), s.InList(ctx, f.Updated))
	})
}

func updateWithoutCreate(ctx context.Context, s *Session) error {
	if err := requireWritableIdentifier(s); err != nil {
		return err
	}
	model, err := s.Generator.CreateExample()
	if err != nil {
		return fmt.Errorf("create example: %w", err)
	}
	next, err := s.Generator.UpdateExample(model)
	if err != nil {
		return fmt.Errorf("update example: %w", err)
	}
	_, err = s.Client.AssertFailure(ctx, update, contract.ErrorNotFound, next, model)
	return err
}

func deleteWithoutCreate(ctx context.Context, s *Session) error {
	if err := requireWritableIdentifier(s); err != nil {
		return err
	}
	model, err := s.Generator.CreateExample()
	if err != nil {
		return fmt.Errorf("create example: %w", err)
	}
	_, err = s.Client.AssertFailure(ctx, del, contract.ErrorNotFound, s.Client.PrimaryIdentifierModel(model), nil)
	return err
}

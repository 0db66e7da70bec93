package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rcontract/internal/contract"
	"github.com/roach88/rcontract/internal/resource"
)

// Session is what a scenario works with: a client for the handler, a
// generator for example models and an optional exchange trace.
type Session struct {
	Client    *contract.Client
	Generator *resource.Generator
	trace     *TraceRecorder
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithTrace attaches per-scenario exchange traces to results. The same
// recorder must be installed on the client with contract.WithRecorder.
func WithTrace(tr *TraceRecorder) SessionOption {
	return func(s *Session) { s.trace = tr }
}

// NewSession creates a session.
func NewSession(client *contract.Client, gen *resource.Generator, opts ...SessionOption) *Session {
	s := &Session{Client: client, Generator: gen}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Type returns the resource type under test.
func (s *Session) Type() *resource.Type { return s.Client.Type() }

// Fixture is a resource owned by one scenario.
type Fixture struct {
	// Request is the create example sent to the handler.
	Request resource.Model

	// Created is the model returned by create.
	Created resource.Model

	// UpdateRequest and Updated are set by WithUpdatedResource.
	UpdateRequest resource.Model
	Updated       resource.Model
}

// WithCreatedResource creates a resource from a fresh create example,
// checks the handler returned what was requested, and runs body. The
// resource is deleted by primary identifier on every exit path, including
// a create that failed after the handler may have provisioned it.
func (s *Session) WithCreatedResource(ctx context.Context, body func(ctx context.Context, f *Fixture) error) (err error) {
	f, err := s.newFixture()
	if err != nil {
		return err
	}
	defer func() { err = s.release(ctx, f, err) }()

	if err := s.create(ctx, f); err != nil {
		return err
	}
	return body(ctx, f)
}

// WithUpdatedResource is WithCreatedResource followed by an update with a
// fresh update example before body runs.
func (s *Session) WithUpdatedResource(ctx context.Context, body func(ctx context.Context, f *Fixture) error) (err error) {
	f, err := s.newFixture()
	if err != nil {
		return err
	}
	defer func() { err = s.release(ctx, f, err) }()

	if err := s.create(ctx, f); err != nil {
		return err
	}
	if f.UpdateRequest, err = s.Generator.UpdateExample(f.Created); err != nil {
		return fmt.Errorf("update example: %w", err)
	}
	if f.Updated, err = s.Client.UpdateResource(ctx, f.UpdateRequest, f.Created); err != nil {
		return err
	}
	if err := s.Client.CompareRequestedModel(f.UpdateRequest, f.Updated); err != nil {
		return err
	}
	return body(ctx, f)
}

func (s *Session) newFixture() (*Fixture, error) {
	request, err := s.Generator.CreateExample()
	if err != nil {
		return nil, fmt.Errorf("create example: %w", err)
	}
	return &Fixture{Request: request}, nil
}

// create sends the fixture's request and checks the handler returned what
// was requested. Created stays nil unless the create succeeded.
func (s *Session) create(ctx context.Context, f *Fixture) error {
	created, err := s.Client.CreateResource(ctx, f.Request)
	if err != nil {
		return err
	}
	f.Created = created
	return s.Client.CompareRequestedModel(f.Request, f.Created)
}

// release deletes the fixture's resource. Without a created model the
// request's primary identifier is deleted instead, and a failure of that
// delete is only logged.
func (s *Session) release(ctx context.Context, f *Fixture, err error) error {
	if f.Created != nil {
		return s.teardown(ctx, f.Created, err)
	}
	ids := s.Client.PrimaryIdentifierModel(f.Request)
	if len(ids) == 0 {
		slog.Debug("create failed and the request has no primary identifier to delete", "scenario", contract.ScenarioFrom(ctx))
		return err
	}
	if delErr := s.Client.DeleteResource(context.WithoutCancel(ctx), ids); delErr != nil {
		slog.Debug("best-effort delete after failed create", "scenario", contract.ScenarioFrom(ctx), "error", delErr)
	}
	return err
}

// teardown deletes model and joins a delete failure onto err.
func (s *Session) teardown(ctx context.Context, model resource.Model, err error) error {
	ids := s.Client.PrimaryIdentifierModel(model)
	if delErr := s.Client.DeleteResource(context.WithoutCancel(ctx), ids); delErr != nil {
		slog.Warn("fixture teardown failed", "scenario", contract.ScenarioFrom(ctx), "error", delErr)
		return errors.Join(err, fmt.Errorf("teardown: %w", delErr))
	}
	return err
}

// ReadSuccess reads model by primary identifier and checks the handler
// returns it unchanged.
func (s *Session) ReadSuccess(ctx context.Context, model resource.Model) (resource.Model, error) {
	read, err := s.Client.ReadResource(ctx, s.Client.PrimaryIdentifierModel(model))
	if err != nil {
		return nil, err
	}
	if err := s.Client.CompareRequestedModel(model, read); err != nil {
		return nil, err
	}
	return read, nil
}

// InList checks that model appears in LIST results.
func (s *Session) InList(ctx context.Context, model resource.Model) error {
	found, err := s.Client.ListResource(ctx, model)
	if err != nil {
		return err
	}
	if !found {
		return &contract.ContractError{
			Kind:    contract.KindModelMismatch,
			Action:  contract.ActionList,
			Message: "model is not among the listed resources",
			Model:   s.Client.PrimaryIdentifierModel(model),
		}
	}
	return nil
}

// SameIdentifier checks that an update kept the primary identifier.
func (s *Session) SameIdentifier(before, after resource.Model) error {
	if contract.IsPrimaryIdentifierEqual(s.Type().PrimaryIdentifierPaths, before, after) {
		return nil
	}
	return &contract.ContractError{
		Kind:    contract.KindModelMismatch,
		Action:  contract.ActionUpdate,
		Message: "primary identifier changed by update",
		Model:   after,
	}
}

package testutil

import (
	"context"
	"sync"

	"github.com/roach88/rcontract/internal/contract"
)

// Step is one scripted reply.
type Step struct {
	Event contract.ProgressEvent
	Err   error
}

// ScriptedTransport replies with its steps in order and repeats the last
// one once they run out. Every request is kept for inspection.
type ScriptedTransport struct {
	mu       sync.Mutex
	steps    []Step
	next     int
	requests []contract.HandlerRequest
}

// NewScriptedTransport creates a transport replying with steps.
func NewScriptedTransport(steps ...Step) *ScriptedTransport {
	return &ScriptedTransport{steps: steps}
}

// Events is NewScriptedTransport with event-only steps.
func Events(events ...contract.ProgressEvent) *ScriptedTransport {
	steps := make([]Step, len(events))
	for i, ev := range events {
		steps[i] = Step{Event: ev}
	}
	return NewScriptedTransport(steps...)
}

// Invoke implements contract.Transport.
func (s *ScriptedTransport) Invoke(ctx context.Context, req contract.HandlerRequest) (contract.ProgressEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err := ctx.Err(); err != nil {
		return contract.ProgressEvent{}, err
	}
	if len(s.steps) == 0 {
		return contract.ProgressEvent{Status: contract.StatusSuccess}, nil
	}
	step := s.steps[min(s.next, len(s.steps)-1)]
	s.next++
	return step.Event, step.Err
}

// Requests returns the requests received so far.
func (s *ScriptedTransport) Requests() []contract.HandlerRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contract.HandlerRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

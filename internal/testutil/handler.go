package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/rcontract/internal/canonical"
	"github.com/roach88/rcontract/internal/contract"
	"github.com/roach88/rcontract/internal/resource"
)

// MemoryHandler is a conforming CRUDL handler over an in-memory table. It
// implements contract.Transport and is the reference counterpart of the
// contract suite.
//
// readOnly properties are assigned on create. Identifier-only requests are
// resolved by primary identifier or by any complete additional identifier
// set. writeOnly properties are stored but never returned.
type MemoryHandler struct {
	mu        sync.Mutex
	typ       *resource.Type
	newID     func() string
	polls     int
	never     bool
	pageSize  int
	delay     int
	resources map[string]resource.Model
	order     []string
	attempts  map[string]int
	requests  []contract.HandlerRequest
}

// HandlerOption configures a MemoryHandler.
type HandlerOption func(*MemoryHandler)

// WithPolls makes every operation report IN_PROGRESS n times before its
// terminal event.
func WithPolls(n int) HandlerOption {
	return func(h *MemoryHandler) { h.polls = n }
}

// WithNeverTerminating makes every operation report IN_PROGRESS forever.
func WithNeverTerminating() HandlerOption {
	return func(h *MemoryHandler) { h.never = true }
}

// WithPageSize splits LIST results into pages of n models.
func WithPageSize(n int) HandlerOption {
	return func(h *MemoryHandler) { h.pageSize = n }
}

// WithCallbackDelay sets callbackDelaySeconds on IN_PROGRESS events.
func WithCallbackDelay(seconds int) HandlerOption {
	return func(h *MemoryHandler) { h.delay = seconds }
}

// WithHandlerIDs replaces the uuid source of readOnly values.
func WithHandlerIDs(f func() string) HandlerOption {
	return func(h *MemoryHandler) { h.newID = f }
}

// NewMemoryHandler creates an empty handler for t.
func NewMemoryHandler(t *resource.Type, opts ...HandlerOption) *MemoryHandler {
	h := &MemoryHandler{
		typ:       t,
		newID:     uuid.NewString,
		resources: make(map[string]resource.Model),
		attempts:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Invoke implements contract.Transport.
func (h *MemoryHandler) Invoke(ctx context.Context, req contract.HandlerRequest) (contract.ProgressEvent, error) {
	if err := ctx.Err(); err != nil {
		return contract.ProgressEvent{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, req)

	if ev, pending := h.progress(req); pending {
		return ev, nil
	}

	model := resource.CopyModel(req.RequestData.ResourceProperties)
	switch req.Action {
	case contract.ActionCreate:
		return h.create(model), nil
	case contract.ActionRead:
		return h.read(model), nil
	case contract.ActionUpdate:
		return h.update(model), nil
	case contract.ActionDelete:
		return h.delete(model), nil
	case contract.ActionList:
		return h.list(req.NextToken), nil
	}
	return failed(contract.ErrorInvalidRequest, "unsupported action %q", req.Action), nil
}

// progress returns an IN_PROGRESS event while the request still owes
// polls. The callback context carries the attempt number and must come
// back unchanged.
func (h *MemoryHandler) progress(req contract.HandlerRequest) (contract.ProgressEvent, bool) {
	if !h.never && h.polls == 0 {
		return contract.ProgressEvent{}, false
	}
	attempt := h.attempts[req.ClientRequestToken]
	if attempt > 0 {
		want := map[string]any{"attempt": attempt}
		if !canonical.Equal(want, req.CallbackContext) {
			return failed(contract.ErrorInternalFailure, "callback context was not forwarded"), true
		}
	}
	if !h.never && attempt >= h.polls {
		delete(h.attempts, req.ClientRequestToken)
		return contract.ProgressEvent{}, false
	}
	h.attempts[req.ClientRequestToken] = attempt + 1
	return contract.ProgressEvent{
		Status:               contract.StatusInProgress,
		CallbackContext:      map[string]any{"attempt": attempt + 1},
		CallbackDelaySeconds: h.delay,
	}, true
}

func (h *MemoryHandler) create(model resource.Model) contract.ProgressEvent {
	for _, p := range h.typ.ReadOnlyPaths {
		if _, ok := resource.Get(model, p); ok {
			return failed(contract.ErrorInvalidRequest, "readOnly property %s cannot be set", p)
		}
	}
	id := h.newID()
	for _, p := range h.typ.ReadOnlyPaths {
		if err := resource.Set(model, p, h.readOnlyValue(p, id)); err != nil {
			return failed(contract.ErrorInternalFailure, "assigning %s: %v", p, err)
		}
	}
	key, ok := h.key(model)
	if !ok {
		return failed(contract.ErrorInvalidRequest, "primary identifier missing")
	}
	if _, exists := h.resources[key]; exists {
		return failed(contract.ErrorAlreadyExists, "resource %s already exists", key)
	}
	h.resources[key] = model
	h.order = append(h.order, key)
	slog.Debug("memory handler created resource", "key", key)
	return success(h.visible(model))
}

func (h *MemoryHandler) read(model resource.Model) contract.ProgressEvent {
	key, found := h.find(model)
	if !found {
		return failed(contract.ErrorNotFound, "resource not found")
	}
	return success(h.visible(h.resources[key]))
}

func (h *MemoryHandler) update(model resource.Model) contract.ProgressEvent {
	key, found := h.find(model)
	if !found {
		return failed(contract.ErrorNotFound, "resource not found")
	}
	existing := h.resources[key]
	for _, p := range h.typ.CreateOnlyPaths {
		want, _ := resource.Get(existing, p)
		if got, ok := resource.Get(model, p); ok && !canonical.Equal(want, got) {
			return failed(contract.ErrorNotUpdatable, "createOnly property %s cannot change", p)
		}
	}
	for _, p := range h.typ.ReadOnlyPaths {
		resource.Delete(model, p)
		if v, ok := resource.Get(existing, p); ok {
			_ = resource.Set(model, p, v)
		}
	}
	ignored := append(append([]resource.Path{}, h.typ.ReadOnlyPaths...), h.typ.WriteOnlyPaths...)
	if canonical.Equal(resource.Prune(model, ignored), resource.Prune(existing, ignored)) {
		return failed(contract.ErrorNoOperationToPerform, "resource %s is already in the requested state", key)
	}
	h.resources[key] = model
	return success(h.visible(model))
}

func (h *MemoryHandler) delete(model resource.Model) contract.ProgressEvent {
	key, found := h.find(model)
	if !found {
		return failed(contract.ErrorNotFound, "resource not found")
	}
	delete(h.resources, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return contract.ProgressEvent{Status: contract.StatusSuccess}
}

func (h *MemoryHandler) list(token string) contract.ProgressEvent {
	start := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 || n > len(h.order) {
			return failed(contract.ErrorInvalidRequest, "invalid next token %q", token)
		}
		start = n
	}
	end := len(h.order)
	if h.pageSize > 0 && start+h.pageSize < end {
		end = start + h.pageSize
	}
	models := make([]resource.Model, 0, end-start)
	for _, key := range h.order[start:end] {
		models = append(models, h.visible(h.resources[key]))
	}
	ev := contract.ProgressEvent{Status: contract.StatusSuccess, ResourceModels: models}
	if end < len(h.order) {
		ev.NextToken = strconv.Itoa(end)
	}
	return ev
}

// key identifies model by its primary identifier values.
func (h *MemoryHandler) key(model resource.Model) (string, bool) {
	ids := resource.ModelWithPaths(model, h.typ.PrimaryIdentifierPaths)
	for _, p := range h.typ.PrimaryIdentifierPaths {
		if _, ok := resource.Get(ids, p); !ok {
			return "", false
		}
	}
	data, err := canonical.Marshal(ids)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// find resolves a request model by primary identifier, then by additional
// identifier sets.
func (h *MemoryHandler) find(model resource.Model) (string, bool) {
	if key, ok := h.key(model); ok {
		_, exists := h.resources[key]
		return key, exists
	}
	for _, set := range h.typ.AdditionalIdentifierPaths {
		for _, key := range h.order {
			if matches(set, model, h.resources[key]) {
				return key, true
			}
		}
	}
	return "", false
}

func matches(paths []resource.Path, want, have resource.Model) bool {
	for _, p := range paths {
		w, ok := resource.Get(want, p)
		if !ok {
			return false
		}
		v, ok := resource.Get(have, p)
		if !ok || !canonical.Equal(w, v) {
			return false
		}
	}
	return len(paths) > 0
}

func (h *MemoryHandler) readOnlyValue(p resource.Path, id string) any {
	node, _ := h.typ.PropertySchema(p)
	switch node["type"] {
	case "integer", "number":
		return len(h.order) + 1
	case "boolean":
		return true
	}
	if h.typ.IsPrimaryIdentifier(p) {
		return id
	}
	return fmt.Sprintf("arn:rcontract:%s:%s", p[len(p)-1], id)
}

// visible returns a copy of model without writeOnly properties.
func (h *MemoryHandler) visible(model resource.Model) resource.Model {
	return resource.Prune(model, h.typ.WriteOnlyPaths)
}

// Requests returns the requests received so far.
func (h *MemoryHandler) Requests() []contract.HandlerRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]contract.HandlerRequest, len(h.requests))
	copy(out, h.requests)
	return out
}

// Len returns the number of stored resources.
func (h *MemoryHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.resources)
}

// Put stores model directly, bypassing create.
func (h *MemoryHandler) Put(model resource.Model) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key, ok := h.key(model)
	if !ok {
		return fmt.Errorf("model has no primary identifier")
	}
	if _, exists := h.resources[key]; !exists {
		h.order = append(h.order, key)
	}
	h.resources[key] = resource.CopyModel(model)
	return nil
}

func success(model resource.Model) contract.ProgressEvent {
	return contract.ProgressEvent{Status: contract.StatusSuccess, ResourceModel: model}
}

func failed(code contract.HandlerErrorCode, format string, args ...any) contract.ProgressEvent {
	return contract.ProgressEvent{
		Status:    contract.StatusFailed,
		ErrorCode: code,
		Message:   fmt.Sprintf(format, args...),
	}
}

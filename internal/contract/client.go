package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/roach88/rcontract/internal/canonical"
	"github.com/roach88/rcontract/internal/resource"
)

// Defaults for a Client.
const (
	DefaultEnforceTimeout = 30 * time.Second
	DefaultPollInterval   = time.Second
	DefaultRegion         = "us-east-1"
)

// errStillInProgress marks a poll iteration that has to be retried.
var errStillInProgress = errors.New("handler still in progress")

// Client runs handler operations for one resource type.
type Client struct {
	typ            *resource.Type
	transport      Transport
	enforceTimeout time.Duration
	pollInterval   time.Duration
	region         string
	roleARN        string
	credentials    *Credentials
	recorder       Recorder
	metrics        *Metrics
	newToken       func() string
}

// Option configures a Client.
type Option func(*Client)

// WithEnforceTimeout bounds every CallAndAssert, polls included.
func WithEnforceTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.enforceTimeout = d
		}
	}
}

// WithPollInterval sets the delay between polls when the handler does not
// ask for one.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithRegion sets the region sent with every request.
func WithRegion(region string) Option {
	return func(c *Client) { c.region = region }
}

// WithRoleARN sets the execution role sent with every request.
func WithRoleARN(arn string) Option {
	return func(c *Client) { c.roleARN = arn }
}

// WithCredentials sets the caller credentials sent with every request.
func WithCredentials(creds *Credentials) Option {
	return func(c *Client) { c.credentials = creds }
}

// WithRecorder records every exchange.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithMetrics counts invocations, polls and operation durations.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTokenSource replaces the uuid source of client request tokens.
func WithTokenSource(f func() string) Option {
	return func(c *Client) { c.newToken = f }
}

// NewClient creates a client for t that reaches the handler through
// transport.
func NewClient(t *resource.Type, transport Transport, opts ...Option) *Client {
	c := &Client{
		typ:            t,
		transport:      transport,
		enforceTimeout: DefaultEnforceTimeout,
		pollInterval:   DefaultPollInterval,
		region:         DefaultRegion,
		newToken:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Type returns the resource type the client operates on.
func (c *Client) Type() *resource.Type { return c.typ }

// EnforceTimeout returns the bound applied to CallAndAssert.
func (c *Client) EnforceTimeout() time.Duration { return c.enforceTimeout }

func (c *Client) newRequest(action Action, model, previous resource.Model) HandlerRequest {
	if model == nil {
		model = resource.Model{}
	}
	return HandlerRequest{
		ClientRequestToken: c.newToken(),
		Action:             action,
		ResourceType:       c.typ.Name,
		Region:             c.region,
		RoleARN:            c.roleARN,
		RequestData: RequestData{
			ResourceProperties:         resource.CopyModel(model),
			PreviousResourceProperties: resource.CopyModel(previous),
			LogicalResourceID:          "rcontract",
			CallerCredentials:          c.credentials,
		},
	}
}

// Call performs a single exchange without polling or assertions.
func (c *Client) Call(ctx context.Context, action Action, model, previous resource.Model) (ProgressEvent, error) {
	return c.invoke(ctx, c.newRequest(action, model, previous))
}

func (c *Client) invoke(ctx context.Context, req HandlerRequest) (ProgressEvent, error) {
	start := time.Now()
	event, err := c.transport.Invoke(ctx, req)
	elapsed := time.Since(start)

	status := string(event.Status)
	if err != nil {
		status = "error"
	}
	c.metrics.invocation(req.Action, status)

	if c.recorder != nil {
		ex := Exchange{
			Scenario: ScenarioFrom(ctx),
			Action:   req.Action,
			Request:  req,
			Event:    event,
			Err:      err,
			Duration: elapsed,
		}
		if rerr := c.recorder.Record(context.WithoutCancel(ctx), ex); rerr != nil {
			slog.Warn("failed to record exchange", "action", req.Action, "error", rerr)
		}
	}

	if err != nil {
		slog.Debug("handler invocation failed", "action", req.Action, "error", err)
		return ProgressEvent{}, &ContractError{
			Kind:   KindTransport,
			Action: req.Action,
			Model:  req.RequestData.ResourceProperties,
			Err:    err,
		}
	}
	slog.Debug("handler invoked",
		"action", req.Action,
		"status", event.Status,
		"error_code", event.ErrorCode,
		"duration", elapsed,
	)
	return event, nil
}

// CallAndAssert runs action to a terminal status and checks it equals
// expected. While the handler reports IN_PROGRESS the same request is
// re-sent with the returned callback context after the requested delay.
// The whole exchange is bounded by the enforce timeout.
func (c *Client) CallAndAssert(ctx context.Context, action Action, expected OperationStatus, model, previous resource.Model) (OperationStatus, ProgressEvent, HandlerErrorCode, error) {
	return c.callAndAssert(ctx, c.newRequest(action, model, previous), expected)
}

func (c *Client) callAndAssert(ctx context.Context, req HandlerRequest, expected OperationStatus) (OperationStatus, ProgressEvent, HandlerErrorCode, error) {
	action := req.Action
	model := req.RequestData.ResourceProperties
	if !expected.Terminal() {
		return "", ProgressEvent{}, "", fmt.Errorf("expected status must be terminal, got %s", expected)
	}

	start := time.Now()
	defer func() { c.metrics.operation(action, time.Since(start)) }()

	loopCtx, cancel := context.WithTimeout(ctx, c.enforceTimeout)
	defer cancel()

	delay := c.pollInterval
	backoff := retry.WithMaxDuration(c.enforceTimeout, retry.BackoffFunc(func() (time.Duration, bool) {
		return delay, false
	}))

	var event ProgressEvent
	attempts := 0
	err := retry.Do(loopCtx, backoff, func(ctx context.Context) error {
		if attempts > 0 {
			c.metrics.poll(action)
		}
		attempts++

		ev, err := c.invoke(ctx, req)
		if err != nil {
			return err
		}
		event = ev
		if err := checkShape(action, ev); err != nil {
			return err
		}
		if ev.Status.Terminal() {
			return nil
		}
		req.CallbackContext = ev.CallbackContext
		delay = c.pollInterval
		if ev.CallbackDelaySeconds > 0 {
			delay = time.Duration(ev.CallbackDelaySeconds) * time.Second
		}
		slog.Debug("handler in progress, polling", "action", action, "delay", delay, "attempt", attempts)
		return retry.RetryableError(errStillInProgress)
	})

	switch {
	case err == nil:
	case ctx.Err() != nil:
		return event.Status, event, event.ErrorCode, ctx.Err()
	case errors.Is(err, errStillInProgress), errors.Is(loopCtx.Err(), context.DeadlineExceeded):
		return event.Status, event, event.ErrorCode, &ContractError{
			Kind:     KindTimeout,
			Action:   action,
			Expected: expected,
			Actual:   event.Status,
			Message:  fmt.Sprintf("no terminal status within %s after %d invocations", c.enforceTimeout, attempts),
			Model:    model,
		}
	default:
		return event.Status, event, event.ErrorCode, err
	}

	if event.Status != expected {
		return event.Status, event, event.ErrorCode, &ContractError{
			Kind:      KindUnexpectedStatus,
			Action:    action,
			Expected:  expected,
			Actual:    event.Status,
			ErrorCode: event.ErrorCode,
			Message:   event.Message,
			Model:     model,
		}
	}
	if event.Status == StatusSuccess && action.returnsModel() {
		for _, p := range c.typ.PrimaryIdentifierPaths {
			if _, ok := resource.Get(event.ResourceModel, p); !ok {
				return event.Status, event, event.ErrorCode, &ContractError{
					Kind:    KindMissingIdentifier,
					Action:  action,
					Actual:  event.Status,
					Message: fmt.Sprintf("primary identifier %s missing from returned model", p),
					Model:   event.ResourceModel,
				}
			}
		}
	}
	return event.Status, event, event.ErrorCode, nil
}

// checkShape enforces the per-status event rules.
func checkShape(action Action, ev ProgressEvent) error {
	malformed := func(format string, args ...any) error {
		return &ContractError{
			Kind:      KindMalformed,
			Action:    action,
			Actual:    ev.Status,
			ErrorCode: ev.ErrorCode,
			Message:   fmt.Sprintf(format, args...),
		}
	}
	switch ev.Status {
	case StatusPending, StatusInProgress:
		if ev.ErrorCode != "" {
			return malformed("in-progress event must not carry an error code")
		}
		if len(ev.ResourceModels) > 0 {
			return malformed("in-progress event must not carry resourceModels")
		}
	case StatusSuccess:
		if ev.ErrorCode != "" {
			return malformed("successful event must not carry an error code")
		}
		if ev.CallbackDelaySeconds != 0 {
			return malformed("successful event must not request a callback delay")
		}
	case StatusFailed:
		if !ev.ErrorCode.Valid() {
			return malformed("failed event must carry a known error code, got %q", ev.ErrorCode)
		}
		if ev.Message == "" {
			return malformed("failed event must carry a message")
		}
		if ev.CallbackDelaySeconds != 0 {
			return malformed("failed event must not request a callback delay")
		}
		if len(ev.ResourceModels) > 0 {
			return malformed("failed event must not carry resourceModels")
		}
	default:
		return malformed("unknown status %q", ev.Status)
	}
	return nil
}

// AssertFailure runs action expecting FAILED with code.
func (c *Client) AssertFailure(ctx context.Context, action Action, code HandlerErrorCode, model, previous resource.Model) (ProgressEvent, error) {
	_, event, got, err := c.CallAndAssert(ctx, action, StatusFailed, model, previous)
	if err != nil {
		return event, err
	}
	if got != code {
		return event, &ContractError{
			Kind:      KindUnexpectedStatus,
			Action:    action,
			Expected:  StatusFailed,
			Actual:    StatusFailed,
			ErrorCode: got,
			Message:   fmt.Sprintf("expected error code %s: %s", code, event.Message),
			Model:     model,
		}
	}
	return event, nil
}

// PrimaryIdentifierModel restricts model to its primary identifiers.
func (c *Client) PrimaryIdentifierModel(model resource.Model) resource.Model {
	return resource.ModelWithPaths(model, c.typ.PrimaryIdentifierPaths)
}

// CreateResource creates model and returns the handler's model.
func (c *Client) CreateResource(ctx context.Context, model resource.Model) (resource.Model, error) {
	_, event, _, err := c.CallAndAssert(ctx, ActionCreate, StatusSuccess, model, nil)
	if err != nil {
		return nil, err
	}
	return event.ResourceModel, nil
}

// ReadResource reads the resource identified by model.
func (c *Client) ReadResource(ctx context.Context, model resource.Model) (resource.Model, error) {
	_, event, _, err := c.CallAndAssert(ctx, ActionRead, StatusSuccess, model, nil)
	if err != nil {
		return nil, err
	}
	return event.ResourceModel, nil
}

// UpdateResource updates previous to model and returns the handler's
// model.
func (c *Client) UpdateResource(ctx context.Context, model, previous resource.Model) (resource.Model, error) {
	_, event, _, err := c.CallAndAssert(ctx, ActionUpdate, StatusSuccess, model, previous)
	if err != nil {
		return nil, err
	}
	return event.ResourceModel, nil
}

// DeleteResource deletes the resource identified by model.
func (c *Client) DeleteResource(ctx context.Context, model resource.Model) error {
	_, _, _, err := c.CallAndAssert(ctx, ActionDelete, StatusSuccess, model, nil)
	return err
}

// ListResource pages through LIST results and reports whether a model
// with the primary identifier of model is among them.
func (c *Client) ListResource(ctx context.Context, model resource.Model) (bool, error) {
	req := c.newRequest(ActionList, resource.Model{}, nil)
	for page := 1; ; page++ {
		_, event, _, err := c.callAndAssert(ctx, req, StatusSuccess)
		if err != nil {
			return false, err
		}
		for _, listed := range event.ResourceModels {
			if IsPrimaryIdentifierEqual(c.typ.PrimaryIdentifierPaths, model, listed) {
				slog.Debug("model found in list", "page", page)
				return true, nil
			}
		}
		if event.NextToken == "" {
			return false, nil
		}
		req = c.newRequest(ActionList, resource.Model{}, nil)
		req.NextToken = event.NextToken
	}
}

// IsPrimaryIdentifierEqual reports whether a and b carry equal values at
// every path. A path missing from either model makes them unequal.
func IsPrimaryIdentifierEqual(paths []resource.Path, a, b resource.Model) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		av, ok := resource.Get(a, p)
		if !ok {
			return false
		}
		bv, ok := resource.Get(b, p)
		if !ok {
			return false
		}
		if !canonical.Equal(av, bv) {
			return false
		}
	}
	return true
}

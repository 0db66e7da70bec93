package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/rcontract/internal/resource"
)

// Action is a handler operation.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionList   Action = "LIST"
)

// Actions lists every action in protocol order.
var Actions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList}

// ParseAction accepts any letter case.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if strings.EqualFold(string(a), s) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// returnsModel reports whether a successful event for a must carry the
// resource model.
func (a Action) returnsModel() bool {
	return a == ActionCreate || a == ActionRead || a == ActionUpdate
}

// OperationStatus is the status of a progress event.
type OperationStatus string

const (
	StatusPending    OperationStatus = "PENDING"
	StatusInProgress OperationStatus = "IN_PROGRESS"
	StatusSuccess    OperationStatus = "SUCCESS"
	StatusFailed     OperationStatus = "FAILED"
)

// statusComplete is the legacy wire spelling of SUCCESS.
const statusComplete = "COMPLETE"

// Valid reports whether s is a known status.
func (s OperationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further polling happens after s.
func (s OperationStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// UnmarshalJSON maps COMPLETE to SUCCESS. Unknown values are kept so the
// shape check can report them.
func (s *OperationStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	if raw == statusComplete {
		raw = string(StatusSuccess)
	}
	*s = OperationStatus(raw)
	return nil
}

// ParseStatus accepts the wire spelling, including COMPLETE.
func ParseStatus(s string) (OperationStatus, error) {
	if s == statusComplete {
		return StatusSuccess, nil
	}
	status := OperationStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return status, nil
}

// HandlerErrorCode is the failure taxonomy a handler reports with FAILED.
type HandlerErrorCode string

const (
	ErrorNotUpdatable             HandlerErrorCode = "NotUpdatable"
	ErrorInvalidRequest           HandlerErrorCode = "InvalidRequest"
	ErrorAccessDenied             HandlerErrorCode = "AccessDenied"
	ErrorInvalidCredentials       HandlerErrorCode = "InvalidCredentials"
	ErrorAlreadyExists            HandlerErrorCode = "AlreadyExists"
	ErrorNotFound                 HandlerErrorCode = "NotFound"
	ErrorResourceConflict         HandlerErrorCode = "ResourceConflict"
	ErrorThrottling               HandlerErrorCode = "Throttling"
	ErrorServiceLimitExceeded     HandlerErrorCode = "ServiceLimitExceeded"
	ErrorNotStabilized            HandlerErrorCode = "NotStabilized"
	ErrorGeneralServiceException  HandlerErrorCode = "GeneralServiceException"
	ErrorServiceInternalError     HandlerErrorCode = "ServiceInternalError"
	ErrorNetworkFailure           HandlerErrorCode = "NetworkFailure"
	ErrorInternalFailure          HandlerErrorCode = "InternalFailure"
	ErrorInvalidTypeConfiguration HandlerErrorCode = "InvalidTypeConfiguration"
	ErrorHandlerInternalFailure   HandlerErrorCode = "HandlerInternalFailure"
	ErrorNoOperationToPerform     HandlerErrorCode = "NoOperationToPerform"
	ErrorNonCompliant             HandlerErrorCode = "NonCompliant"
	ErrorUnknown                  HandlerErrorCode = "Unknown"
)

var handlerErrorCodes = map[HandlerErrorCode]bool{
	ErrorNotUpdatable:             true,
	ErrorInvalidRequest:           true,
	ErrorAccessDenied:             true,
	ErrorInvalidCredentials:       true,
	ErrorAlreadyExists:            true,
	ErrorNotFound:                 true,
	ErrorResourceConflict:         true,
	ErrorThrottling:               true,
	ErrorServiceLimitExceeded:     true,
	ErrorNotStabilized:            true,
	ErrorGeneralServiceException:  true,
	ErrorServiceInternalError:     true,
	ErrorNetworkFailure:           true,
	ErrorInternalFailure:          true,
	ErrorInvalidTypeConfiguration: true,
	ErrorHandlerInternalFailure:   true,
	ErrorNoOperationToPerform:     true,
	ErrorNonCompliant:             true,
	ErrorUnknown:                  true,
}

// Valid reports whether c belongs to the taxonomy.
func (c HandlerErrorCode) Valid() bool { return handlerErrorCodes[c] }

// Credentials are the caller credentials forwarded to the handler.
type Credentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken,omitempty"`
}

// RequestData carries the models of a request.
type RequestData struct {
	ResourceProperties         resource.Model `json:"resourceProperties"`
	PreviousResourceProperties resource.Model `json:"previousResourceProperties,omitempty"`
	LogicalResourceID          string         `json:"logicalResourceId"`
	CallerCredentials          *Credentials   `json:"callerCredentials,omitempty"`
}

// HandlerRequest is one invocation of a handler.
type HandlerRequest struct {
	ClientRequestToken string         `json:"clientRequestToken"`
	Action             Action         `json:"action"`
	ResourceType       string         `json:"resourceType"`
	Region             string         `json:"region,omitempty"`
	RoleARN            string         `json:"roleArn,omitempty"`
	RequestData        RequestData    `json:"requestData"`
	CallbackContext    map[string]any `json:"callbackContext,omitempty"`
	NextToken          string         `json:"nextToken,omitempty"`
}

// Generic returns the request as decoded JSON.
func (r HandlerRequest) Generic() any { return toGeneric(r) }

// ProgressEvent is what a handler returns for one invocation.
type ProgressEvent struct {
	Status               OperationStatus  `json:"status"`
	ResourceModel        resource.Model   `json:"resourceModel,omitempty"`
	ResourceModels       []resource.Model `json:"resourceModels,omitempty"`
	ErrorCode            HandlerErrorCode `json:"errorCode,omitempty"`
	Message              string           `json:"message,omitempty"`
	CallbackContext      map[string]any   `json:"callbackContext,omitempty"`
	CallbackDelaySeconds int              `json:"callbackDelaySeconds,omitempty"`
	NextToken            string           `json:"nextToken,omitempty"`
}

// UnmarshalJSON accepts a fractional callbackDelaySeconds and rounds it up
// to whole seconds.
func (e *ProgressEvent) UnmarshalJSON(data []byte) error {
	type plain ProgressEvent
	aux := struct {
		*plain
		CallbackDelaySeconds json.Number `json:"callbackDelaySeconds,omitempty"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.CallbackDelaySeconds == "" {
		return nil
	}
	delay, err := aux.CallbackDelaySeconds.Float64()
	if err != nil {
		return fmt.Errorf("callbackDelaySeconds: %w", err)
	}
	e.CallbackDelaySeconds = int(math.Ceil(delay))
	return nil
}

// Generic returns the event as decoded JSON.
func (e ProgressEvent) Generic() any { return toGeneric(e) }

// Transport delivers a request to a handler and returns its progress event.
// Transport failures are returned as errors; handler failures are FAILED
// events.
type Transport interface {
	Invoke(ctx context.Context, req HandlerRequest) (ProgressEvent, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req HandlerRequest) (ProgressEvent, error)

// Invoke calls f.
func (f TransportFunc) Invoke(ctx context.Context, req HandlerRequest) (ProgressEvent, error) {
	return f(ctx, req)
}

func toGeneric(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}

package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rcontract/internal/resource"
)

// ErrorKind categorizes contract violations.
type ErrorKind string

const (
	// KindTimeout means the handler did not reach a terminal status within
	// the enforce timeout.
	KindTimeout ErrorKind = "timeout"

	// KindMalformed means a progress event broke the event shape rules.
	KindMalformed ErrorKind = "malformed"

	// KindTransport means the handler could not be reached or its reply
	// could not be decoded.
	KindTransport ErrorKind = "transport"

	// KindUnexpectedStatus means the terminal status or error code differs
	// from the expected one.
	KindUnexpectedStatus ErrorKind = "unexpected_status"

	// KindMissingIdentifier means a successful event lacks a primary
	// identifier.
	KindMissingIdentifier ErrorKind = "missing_identifier"

	// KindModelMismatch means a returned model differs from the requested
	// or previously returned one.
	KindModelMismatch ErrorKind = "model_mismatch"
)

// ContractError is a scenario-local violation of the handler contract.
type ContractError struct {
	Kind      ErrorKind
	Action    Action
	Expected  OperationStatus
	Actual    OperationStatus
	ErrorCode HandlerErrorCode
	Message   string
	Model     resource.Model
	Err       error
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Action != "" {
		fmt.Fprintf(&b, " on %s", e.Action)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, " (expected %s, got %s)", e.Expected, e.Actual)
	}
	if e.ErrorCode != "" {
		fmt.Fprintf(&b, " [%s]", e.ErrorCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ContractError) Unwrap() error { return e.Err }

// TransportError is a failure to deliver a request or decode its reply.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport %s: http status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// IsContractError returns true if err is a ContractError of kind, or of
// any kind when kind is empty.
func IsContractError(err error, kind ErrorKind) bool {
	var ce *ContractError
	if errors.As(err, &ce) {
		return kind == "" || ce.Kind == kind
	}
	return false
}

// IsTimeout returns true if err is an enforce timeout.
func IsTimeout(err error) bool { return IsContractError(err, KindTimeout) }

// IsTransportError returns true if err wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/roach88/rcontract/internal/contract"
)

// Defaults for an HTTPTransport.
const (
	DefaultEndpoint     = "http://127.0.0.1:3001"
	DefaultFunctionName = "TestEntrypoint"
	DefaultTimeout      = 60 * time.Second

	invokePath = "/2015-03-31/functions/{function}/invocations"

	// functionErrorHeader is set when the function itself crashed.
	functionErrorHeader = "X-Amz-Function-Error"
)

// HTTPTransport invokes a handler function over HTTP.
type HTTPTransport struct {
	client   *resty.Client
	function string
	limiter  *rate.Limiter
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithFunctionName selects the function to invoke.
func WithFunctionName(name string) Option {
	return func(t *HTTPTransport) {
		if name != "" {
			t.function = name
		}
	}
}

// WithTimeout bounds a single HTTP exchange.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.client.SetTimeout(d)
		}
	}
}

// WithMaxRPS limits invocations per second. Zero or less disables the
// limit.
func WithMaxRPS(rps float64) Option {
	return func(t *HTTPTransport) {
		if rps > 0 {
			t.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewHTTPTransport creates a transport for the invoke API at endpoint.
func NewHTTPTransport(endpoint string, opts ...Option) *HTTPTransport {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(DefaultTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	t := &HTTPTransport{client: client, function: DefaultFunctionName}
	for _, opt := range opts {
		opt(t)
	}
	if t.limiter != nil {
		client.OnBeforeRequest(rateLimitMiddleware(t.limiter))
	}
	return t
}

func rateLimitMiddleware(limiter *rate.Limiter) resty.RequestMiddleware {
	return func(_ *resty.Client, r *resty.Request) error {
		if err := limiter.Wait(r.Context()); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		return nil
	}
}

// Invoke implements contract.Transport.
func (t *HTTPTransport) Invoke(ctx context.Context, req contract.HandlerRequest) (contract.ProgressEvent, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("function", t.function).
		SetBody(req).
		Post(invokePath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contract.ProgressEvent{}, ctxErr
		}
		return contract.ProgressEvent{}, &contract.TransportError{Op: "invoke", Err: err}
	}

	slog.Debug("function invoked",
		"function", t.function,
		"action", req.Action,
		"http_status", resp.StatusCode(),
		"duration", resp.Time(),
	)

	if resp.StatusCode() >= http.StatusBadRequest {
		return contract.ProgressEvent{}, &contract.TransportError{
			Op:         "invoke",
			StatusCode: resp.StatusCode(),
			Err:        errors.New(responseMessage(resp.Body())),
		}
	}
	if kind := resp.Header().Get(functionErrorHeader); kind != "" {
		return contract.ProgressEvent{}, &contract.TransportError{
			Op:  "invoke",
			Err: fmt.Errorf("function error (%s): %s", kind, responseMessage(resp.Body())),
		}
	}

	var event contract.ProgressEvent
	if err := json.Unmarshal(resp.Body(), &event); err != nil {
		return contract.ProgressEvent{}, &contract.TransportError{
			Op:  "decode",
			Err: fmt.Errorf("progress event is not valid JSON: %w", err),
		}
	}
	return event, nil
}

// responseMessage extracts errorMessage from a function error body, or
// returns the body itself.
func responseMessage(body []byte) string {
	var payload struct {
		ErrorMessage string `json:"errorMessage"`
		Message      string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.ErrorMessage != "" {
			return payload.ErrorMessage
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if len(body) == 0 {
		return "empty response body"
	}
	return string(body)
}

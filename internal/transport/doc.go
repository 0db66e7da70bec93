// Package transport delivers handler requests over HTTP.
//
// HTTPTransport speaks the local function-invoke API used by handler test
// harnesses: the request is POSTed as JSON to
// <endpoint>/2015-03-31/functions/<function>/invocations and the reply body
// is the progress event. Delivery faults are *contract.TransportError and
// are never retried here; the orchestrator decides what a fault means.
package transport

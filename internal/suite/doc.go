// Package suite runs contract scenarios against a resource handler.
//
// A Scenario names the handler actions it needs and a Run function that
// drives a Session. Sessions hand out fixtures: WithCreatedResource and
// WithUpdatedResource create a resource for the duration of a callback and
// always delete it afterwards, including when the callback fails or
// panics.
//
// The built-in scenarios cover the create/read/update/delete/list contract
// (identifiers, immutability, idempotence and the error taxonomy). Custom
// scenarios can be written in YAML:
//
//	name: create_then_read_twice
//	description: reads are repeatable
//	actions: [create, read]
//	steps:
//	  - action: create
//	    model: create
//	    expect: {status: SUCCESS}
//	  - action: read
//	    model: identifier
//	    expect: {status: SUCCESS}
//
// Run executes scenarios in order. A failing or panicking scenario is
// recorded in the Report and never stops the others.
package suite

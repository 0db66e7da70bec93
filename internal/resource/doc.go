// Package resource derives the resource type model from a normalized schema
// (identifier, createOnly, readOnly and writeOnly paths plus declared
// handlers) and synthesizes example models for contract scenarios.
//
// Paths are lists of model keys: "/properties/Foo/Bar" becomes
// Path{"Foo", "Bar"}.
package resource

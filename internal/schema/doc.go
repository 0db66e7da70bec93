// Package schema loads resource type schemas and normalizes them into a
// canonical pointer-keyed map.
//
// Normalization resolves every local $ref, flattens allOf/anyOf/oneOf into
// their parent and records each object that has children under its own
// pointer. References to an object are replaced by {"$ref": pointer} to the
// recorded entry, so N references to one definition share one entry and
// recursive schemas terminate. Primitives and arrays are inlined.
//
// Two error kinds abort normalization: *NormalizationError for references
// that cannot be resolved, and *ConstraintError for constructs the contract
// tooling does not support. Both carry the offending pointer.
package schema

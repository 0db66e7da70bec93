// Package canonical provides the deterministic JSON encoding used to compare
// resource models and to derive content-addressed identifiers for recorded
// handler exchanges.
//
// The encoding follows RFC 8785 in spirit: sorted keys (UTF-16 order), NFC
// strings, no HTML escaping and integral numbers without a fraction. It
// accepts the loosely typed values produced by encoding/json and yaml.v3 so
// that models decoded from either source compare equal.
package canonical

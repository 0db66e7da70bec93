// Package pointer implements the schema pointer format used throughout
// rcontract: RFC 6901 JSON pointers written as URI fragments ("#/a/b").
//
// Pattern-property keys are regular expressions and may contain "/" or other
// characters that are not safe in a single path segment, so they are
// percent-encoded before being appended (see EncodePattern).
package pointer

import (
	"fmt"
	"net/url"
	"strings"
)

// Root is the pointer to the whole document.
const Root = "#"

// Escape applies RFC 6901 escaping to a single segment.
func Escape(segment string) string {
	segment = strings.ReplaceAll(segment, "~", "~0")
	return strings.ReplaceAll(segment, "/", "~1")
}

// Unescape reverses Escape. "~1" must be replaced before "~0".
func Unescape(segment string) string {
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

// Join appends escaped segments to a pointer.
func Join(ptr string, segments ...string) string {
	var b strings.Builder
	b.WriteString(ptr)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(Escape(s))
	}
	return b.String()
}

// JoinPattern appends a patternProperties key, percent-encoded so that the
// regular expression survives as one segment.
func JoinPattern(ptr, pattern string) string {
	return ptr + "/patternProperties/" + EncodePattern(pattern)
}

// EncodePattern percent-encodes every byte outside the unreserved set
// (ALPHA / DIGIT / "-" / "." / "_" / "~").
func EncodePattern(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// Split decodes a fragment pointer into its raw segments. Each segment is
// percent-decoded and then RFC 6901 unescaped. "#" yields no segments.
func Split(ptr string) ([]string, error) {
	if ptr != Root && !strings.HasPrefix(ptr, Root+"/") {
		return nil, fmt.Errorf("pointer %q must start with %q", ptr, Root+"/")
	}
	rest := strings.TrimPrefix(ptr, Root)
	if rest == "" {
		return nil, nil
	}
	parts := strings.Split(rest[1:], "/")
	segments := make([]string, len(parts))
	for i, p := range parts {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return nil, fmt.Errorf("pointer %q: segment %d: %w", ptr, i, err)
		}
		segments[i] = Unescape(decoded)
	}
	return segments, nil
}

// SplitPath decodes an unanchored pointer ("/properties/Foo") as used by
// primaryIdentifier, createOnlyProperties and the overrides file.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path %q must start with %q", path, "/")
	}
	return Split(Root + path)
}

// FromPath converts "/properties/Foo" into "#/properties/Foo".
func FromPath(path string) string {
	if strings.HasPrefix(path, Root) {
		return path
	}
	return Root + path
}

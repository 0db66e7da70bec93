package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs returns a uuid-shaped ID source that yields
// 00000000-0000-0000-0000-000000000001, ...002 and so on. It replaces
// uuid.NewString wherever a test needs stable identifiers.
func SequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
	}
}

// FixedToken returns an ID source that always yields token, or
// "test-token-default" when token is empty. Golden tests use it for client
// request tokens.
func FixedToken(token string) func() string {
	if token == "" {
		token = "test-token-default"
	}
	return func() string { return token }
}

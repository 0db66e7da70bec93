package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rcontract/internal/contract"
	"github.com/roach88/rcontract/internal/resource"
	"github.com/roach88/rcontract/internal/testutil"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestStore creates a new in-memory store with a deterministic clock.
func createTestStore(t *testing.T) (*Store, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	s, err := Open(MemoryDSN, WithClock(clock), WithNow(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func beginTestRun(t *testing.T, s *Store) Run {
	t.Helper()
	run, err := s.BeginRun(context.Background(), "Test::Widget::Thing", "test")
	require.NoError(t, err)
	return run
}

// createTestExchange builds a terminal exchange for action.
func createTestExchange(scenario string, action contract.Action, status contract.OperationStatus) contract.Exchange {
	model := resource.Model{"Name": "widget-one"}
	return contract.Exchange{
		Scenario: scenario,
		Action:   action,
		Request: contract.HandlerRequest{
			ClientRequestToken: "token-" + scenario,
			Action:             action,
			ResourceType:       "Test::Widget::Thing",
			RequestData:        contract.RequestData{ResourceProperties: model, LogicalResourceID: "rcontract"},
		},
		Event: contract.ProgressEvent{
			Status:        status,
			ResourceModel: model,
		},
		Duration: 15 * time.Millisecond,
	}
}

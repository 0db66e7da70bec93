package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rcontract/internal/canonical"
	"github.com/roach88/rcontract/internal/contract"
)

// BeginRun starts a run for typeName and returns it. The run ID is
// content-addressed from typeName, label and the run's seq.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) BeginRun(ctx context.Context, typeName, label string) (Run, error) {
	seq := s.clock.Next()
	id, err := canonical.RunID(typeName, label, seq)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	run := Run{
		ID:         id,
		TypeName:   typeName,
		Label:      label,
		StartedSeq: seq,
		StartedAt:  s.now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, type_name, label, started_seq, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.TypeName,
		run.Label,
		run.StartedSeq,
		run.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// WriteExchange appends one exchange to runID. The request and event are
// stored as canonical JSON; a transport or decode failure is stored with
// an empty response and its error text as the message.
//
// Caller credentials are never stored.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteExchange(ctx context.Context, runID string, ex contract.Exchange) (string, error) {
	req := ex.Request
	req.RequestData.CallerCredentials = nil
	generic := req.Generic()

	request, err := marshalDocument("request", generic)
	if err != nil {
		return "", fmt.Errorf("write exchange: %w", err)
	}

	var response any
	message := ex.Event.Message
	status := string(ex.Event.Status)
	errorCode := string(ex.Event.ErrorCode)
	if ex.Err != nil {
		message = ex.Err.Error()
		status, errorCode = "", ""
	} else {
		response = ex.Event.Generic()
	}
	responseJSON, err := marshalDocument("response", response)
	if err != nil {
		return "", fmt.Errorf("write exchange: %w", err)
	}

	seq := s.clock.Next()
	id, err := canonical.ExchangeID(runID, ex.Scenario, generic, response, seq)
	if err != nil {
		return "", fmt.Errorf("write exchange: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exchanges
		(id, run_id, seq, scenario, action, request, status, error_code, message, response, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		runID,
		seq,
		ex.Scenario,
		string(ex.Action),
		request,
		status,
		errorCode,
		message,
		responseJSON,
		ex.Duration.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("write exchange: %w", err)
	}
	return id, nil
}

// Recorder returns a contract.Recorder that appends to run.
func (s *Store) Recorder(run Run) contract.Recorder {
	return contract.RecorderFunc(func(ctx context.Context, ex contract.Exchange) error {
		id, err := s.WriteExchange(ctx, run.ID, ex)
		if err != nil {
			return err
		}
		slog.Debug("exchange recorded", "run", run.ID, "exchange", id, "action", ex.Action, "scenario", ex.Scenario)
		return nil
	})
}

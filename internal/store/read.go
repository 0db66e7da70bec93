package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const timeLayout = time.RFC3339Nano

// ErrNoRuns is returned by LatestRun on an empty log.
var ErrNoRuns = errors.New("no runs recorded")

// Run is one test run against a resource type.
type Run struct {
	ID         string
	TypeName   string
	Label      string
	StartedSeq int64
	StartedAt  time.Time
}

// Generic returns the run as a JSON-shaped value.
func (r Run) Generic() any {
	return map[string]any{
		"id":          r.ID,
		"type_name":   r.TypeName,
		"label":       r.Label,
		"started_seq": r.StartedSeq,
		"started_at":  r.StartedAt.Format(timeLayout),
	}
}

// Record is one stored exchange.
type Record struct {
	ID        string
	RunID     string
	Seq       int64
	Scenario  string
	Action    string
	Request   map[string]any
	Status    string
	ErrorCode string
	Message   string
	Response  map[string]any
	Duration  time.Duration
}

// Generic returns the record as a JSON-shaped value. Duration is left out
// so replays compare equal.
func (r Record) Generic() any {
	out := map[string]any{
		"id":       r.ID,
		"seq":      r.Seq,
		"scenario": r.Scenario,
		"action":   r.Action,
		"request":  r.Request,
		"response": r.Response,
	}
	if r.Status != "" {
		out["status"] = r.Status
	}
	if r.ErrorCode != "" {
		out["error_code"] = r.ErrorCode
	}
	if r.Message != "" {
		out["message"] = r.Message
	}
	return out
}

// ReadRuns returns every run in start order.
// Results are ordered deterministically: ORDER BY started_seq ASC, id ASC COLLATE BINARY.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type_name, label, started_seq, started_at
		FROM runs
		ORDER BY started_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type_name, label, started_seq, started_at
		FROM runs
		WHERE id = ?
	`, id)
	return scanRun(row)
}

// LatestRun returns the most recently started run, or ErrNoRuns.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type_name, label, started_seq, started_at
		FROM runs
		ORDER BY started_seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	return run, err
}

// ReadExchanges returns every exchange of runID.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the run has no exchanges.
func (s *Store) ReadExchanges(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, scenario, action, request, status, error_code, message, response, duration_ms
		FROM exchanges
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return records, nil
}

// ReadScenario returns the exchanges one scenario made within runID.
func (s *Store) ReadScenario(ctx context.Context, runID, scenario string) ([]Record, error) {
	all, err := s.ReadExchanges(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := []Record{}
	for _, rec := range all {
		if rec.Scenario == scenario {
			out = append(out, rec)
		}
	}
	return out, nil
}

// scanner is the Scan half of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var startedAt string
	if err := row.Scan(&run.ID, &run.TypeName, &run.Label, &run.StartedSeq, &startedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: started_at: %w", err)
	}
	run.StartedAt = t
	return run, nil
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var requestJSON, responseJSON string
	var durationMS int64
	if err := row.Scan(
		&rec.ID, &rec.RunID, &rec.Seq, &rec.Scenario, &rec.Action, &requestJSON,
		&rec.Status, &rec.ErrorCode, &rec.Message, &responseJSON, &durationMS,
	); err != nil {
		return Record{}, fmt.Errorf("scan exchange: %w", err)
	}

	var err error
	if rec.Request, err = unmarshalDocument("request", requestJSON); err != nil {
		return Record{}, err
	}
	if rec.Response, err = unmarshalDocument("response", responseJSON); err != nil {
		return Record{}, err
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}

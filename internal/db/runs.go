package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/roadagent/internal/sim"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded simulation.
type Run struct {
	ID         uuid.UUID    `json:"id"`
	Scenario   string       `json:"scenario"`
	DT         float64      `json:"dt"`
	Version    string       `json:"version"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Ticks      uint64       `json:"ticks"`
	Summary    *sim.Summary `json:"summary,omitempty"`
}

// Sample is one agent at one recorded tick.
type Sample struct {
	Tick        uint64   `json:"tick"`
	Time        float64  `json:"time"`
	Agent       string   `json:"agent"`
	State       string   `json:"state"`
	Arc         float64  `json:"arc"`
	Speed       float64  `json:"speed"`
	TargetSpeed float64  `json:"target_speed"`
	Throttle    float64  `json:"throttle"`
	Brake       float64  `json:"brake"`
	Steering    float64  `json:"steering"`
	ThreatGap   *float64 `json:"threat_gap,omitempty"`
	StopSignGap *float64 `json:"stop_sign_gap,omitempty"`
}

// StartRun inserts a new run row and returns its ID.
func (db *DB) StartRun(ctx context.Context, scenario string, dt float64, version string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, scenario, dt, version, started_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), scenario, dt, version, time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the end time, tick count and summary on a run.
func (db *DB) FinishRun(ctx context.Context, id uuid.UUID, summary sim.Summary) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, ticks = ?, summary = ? WHERE run_id = ?`,
		time.Now().UTC(), summary.Ticks, string(b), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `run_id, scenario, dt, version, started_at, finished_at, ticks, summary`

// Runs lists runs, newest first.
func (db *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun loads one run.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id.String())
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		id       string
		finished sql.NullTime
		summary  sql.NullString
	)
	if err := s.Scan(&id, &r.Scenario, &r.DT, &r.Version, &r.StartedAt, &finished, &r.Ticks, &summary); err != nil {
		return Run{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Run{}, fmt.Errorf("bad run id %q: %w", id, err)
	}
	r.ID = parsed
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if summary.Valid && summary.String != "" {
		var sum sim.Summary
		if err := json.Unmarshal([]byte(summary.String), &sum); err != nil {
			return Run{}, fmt.Errorf("bad summary for run %s: %w", id, err)
		}
		r.Summary = &sum
	}
	return r, nil
}

// RecordFrame stores every agent of f under run id in one transaction.
func (db *DB) RecordFrame(ctx context.Context, id uuid.UUID, f sim.Frame) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (
		run_id, tick, sim_time, agent, state, arc, speed, target_speed,
		throttle, brake, steering, threat_gap, stop_sign_gap
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range f.Agents {
		var threat, sign sql.NullFloat64
		if a.ThreatID != nil {
			threat = sql.NullFloat64{Float64: a.ThreatDistance, Valid: true}
		}
		if a.StopSignID != nil {
			sign = sql.NullFloat64{Float64: a.StopSignDistance, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			id.String(), f.Tick, f.Time, a.Name, string(a.State), a.Arc, a.Speed, a.TargetSpeed,
			a.Throttle, a.Brake, a.Steering, threat, sign,
		); err != nil {
			return fmt.Errorf("failed to insert sample for %s at tick %d: %w", a.Name, f.Tick, err)
		}
	}
	return tx.Commit()
}

// RunSamples returns the samples of one run in tick order. An empty agent
// returns every agent.
func (db *DB) RunSamples(ctx context.Context, id uuid.UUID, agent string) ([]Sample, error) {
	q := `SELECT tick, sim_time, agent, state, arc, speed, target_speed, throttle, brake, steering,
		threat_gap, stop_sign_gap FROM samples WHERE run_id = ?`
	args := []any{id.String()}
	if agent != "" {
		q += ` AND agent = ?`
		args = append(args, agent)
	}
	q += ` ORDER BY tick, agent`

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			s            Sample
			threat, sign sql.NullFloat64
		)
		if err := rows.Scan(&s.Tick, &s.Time, &s.Agent, &s.State, &s.Arc, &s.Speed, &s.TargetSpeed,
			&s.Throttle, &s.Brake, &s.Steering, &threat, &sign); err != nil {
			return nil, err
		}
		if threat.Valid {
			s.ThreatGap = &threat.Float64
		}
		if sign.Valid {
			s.StopSignGap = &sign.Float64
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Recorder writes sampled frames of one run. It satisfies sim.Observer.
type Recorder struct {
	db    *DB
	run   uuid.UUID
	every uint64
}

// NewRecorder records every Nth tick of run; every <= 1 keeps them all.
func (db *DB) NewRecorder(run uuid.UUID, every int) *Recorder {
	if every < 1 {
		every = 1
	}
	return &Recorder{db: db, run: run, every: uint64(every)}
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() uuid.UUID { return r.run }

// ObserveFrame stores f when its tick falls on the sampling interval.
func (r *Recorder) ObserveFrame(ctx context.Context, f sim.Frame) error {
	if f.Tick%r.every != 0 {
		return nil
	}
	return r.db.RecordFrame(ctx, r.run, f)
}

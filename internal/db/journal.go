package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one execution of a route.
type Run struct {
	ID       string
	Route    string
	Zone     int
	Profile  string
	Started  time.Time
	Finished *time.Time
	Result   string
}

// StartRun records a new run and returns its id.
func (db *DB) StartRun(route string, zone int, profile string, at time.Time) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		"INSERT INTO runs (run_id, route, zone, profile, started_unix_ns) VALUES (?, ?, ?, ?, ?)",
		id, route, zone, profile, at.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the end time and result of a run.
func (db *DB) FinishRun(runID, result string, at time.Time) error {
	res, err := db.Exec(
		"UPDATE runs SET finished_unix_ns = ?, result = ? WHERE run_id = ?",
		at.UnixNano(), result, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no run with id %s", runID)
	}
	return nil
}

// Runs lists runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, route, zone, profile, started_unix_ns, finished_unix_ns, COALESCE(result, '')
		FROM runs ORDER BY started_unix_ns DESC LIMIT 500`)
	if err != nil {
		return nil, err
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

// ErrRunNotFound is returned by GetRun for ids nobody started.
var ErrRunNotFound = errors.New("run not found")

// GetRun returns the run with the given id.
func (db *DB) GetRun(id string) (Run, error) {
	row := db.QueryRow(`
		SELECT run_id, route, zone, profile, started_unix_ns, finished_unix_ns, COALESCE(result, '')
		FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var started int64
	var finished sql.NullInt64
	if err := row.Scan(&r.ID, &r.Route, &r.Zone, &r.Profile, &started, &finished, &r.Result); err != nil {
		return Run{}, err
	}
	r.Started = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		r.Finished = &t
	}
	return r, nil
}

// ExchangeRecord is one serial round trip as journalled.
type ExchangeRecord struct {
	RunID      string
	Time       time.Time
	Opcode     string
	Value      *int
	Reply      *string
	DurationMs float64
	Error      string
}

func (db *DB) RecordExchange(e ExchangeRecord) error {
	var value sql.NullInt64
	if e.Value != nil {
		value = sql.NullInt64{Int64: int64(*e.Value), Valid: true}
	}
	var reply sql.NullString
	if e.Reply != nil {
		reply = sql.NullString{String: *e.Reply, Valid: true}
	}
	_, err := db.Exec(
		"INSERT INTO exchanges (run_id, unix_ns, opcode, value, reply, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.RunID, e.Time.UnixNano(), e.Opcode, value, reply, e.DurationMs, e.Error,
	)
	return err
}

// Exchanges returns a run's exchanges in the order they happened.
func (db *DB) Exchanges(runID string) ([]ExchangeRecord, error) {
	rows, err := db.Query(
		"SELECT unix_ns, opcode, value, reply, duration_ms, error FROM exchanges WHERE run_id = ? ORDER BY exchange_id",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExchangeRecord
	for rows.Next() {
		e := ExchangeRecord{RunID: runID}
		var ns int64
		var value sql.NullInt64
		var reply sql.NullString
		if err := rows.Scan(&ns, &e.Opcode, &value, &reply, &e.DurationMs, &e.Error); err != nil {
			return nil, err
		}
		e.Time = time.Unix(0, ns)
		if value.Valid {
			v := int(value.Int64)
			e.Value = &v
		}
		if reply.Valid {
			r := reply.String
			e.Reply = &r
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CommandRecord is one actuator-level command and how it ended. Magnitude is
// metres for moves and degrees for turns, signed the way the command was
// issued.
type CommandRecord struct {
	RunID     string
	Time      time.Time
	Op        string
	Magnitude float64
	Outcome   string
}

func (db *DB) RecordCommand(c CommandRecord) error {
	_, err := db.Exec(
		"INSERT INTO commands (run_id, unix_ns, op, magnitude, outcome) VALUES (?, ?, ?, ?, ?)",
		c.RunID, c.Time.UnixNano(), c.Op, c.Magnitude, c.Outcome,
	)
	return err
}

// Commands returns a run's actuator commands in order.
func (db *DB) Commands(runID string) ([]CommandRecord, error) {
	rows, err := db.Query(
		"SELECT unix_ns, op, magnitude, outcome FROM commands WHERE run_id = ? ORDER BY command_id",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		c := CommandRecord{RunID: runID}
		var ns int64
		if err := rows.Scan(&ns, &c.Op, &c.Magnitude, &c.Outcome); err != nil {
			return nil, err
		}
		c.Time = time.Unix(0, ns)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ApproachRecord is one state transition of a cube approach.
type ApproachRecord struct {
	RunID      string
	Time       time.Time
	MarkerID   int
	MarkerType string
	State      string
	Result     string
	Distance   float64
	// LastTurn is the drive's most recent turn direction.
	LastTurn string
}

func (db *DB) RecordApproach(a ApproachRecord) error {
	_, err := db.Exec(
		"INSERT INTO approaches (run_id, unix_ns, marker_id, marker_type, state, result, distance, last_turn) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		a.RunID, a.Time.UnixNano(), a.MarkerID, a.MarkerType, a.State, a.Result, a.Distance, a.LastTurn,
	)
	return err
}

// Approaches returns a run's approach transitions in order.
func (db *DB) Approaches(runID string) ([]ApproachRecord, error) {
	rows, err := db.Query(
		"SELECT unix_ns, marker_id, marker_type, state, result, distance, last_turn FROM approaches WHERE run_id = ? ORDER BY approach_id",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ApproachRecord
	for rows.Next() {
		a := ApproachRecord{RunID: runID}
		var ns int64
		if err := rows.Scan(&ns, &a.MarkerID, &a.MarkerType, &a.State, &a.Result, &a.Distance, &a.LastTurn); err != nil {
			return nil, err
		}
		a.Time = time.Unix(0, ns)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Sighting is one marker in one camera poll.
type Sighting struct {
	MarkerID   int
	MarkerType string
	Distance   float64
	Bearing    float64
	Rotation   float64
}

// RecordSightings stores a whole poll in one transaction.
func (db *DB) RecordSightings(runID string, at time.Time, sightings []Sighting) error {
	if len(sightings) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO sightings (run_id, unix_ns, marker_id, marker_type, distance, bearing, rotation) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range sightings {
		if _, err := stmt.Exec(runID, at.UnixNano(), s.MarkerID, s.MarkerType, s.Distance, s.Bearing, s.Rotation); err != nil {
			return fmt.Errorf("failed to record sighting of marker %d: %w", s.MarkerID, err)
		}
	}
	return tx.Commit()
}

// SightingCount returns how many markers were journalled for a run.
func (db *DB) SightingCount(runID string) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sightings WHERE run_id = ?", runID).Scan(&n)
	return n, err
}

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/civforge/civsim/internal/domain/civ"
	"github.com/civforge/civsim/internal/engine"
	"github.com/civforge/civsim/internal/events"
)

// SQLiteEventRepository persists events from the in-memory log.
// It satisfies events.Persister.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(event events.Event) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, run_id, timestamp, event_type, actor_id, target_id, tick, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		event.ID, event.RunID, event.Timestamp, event.Type, event.ActorID,
		event.TargetID, event.Tick, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(query string, args ...interface{}) ([]events.Event, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.RunID, &e.Timestamp, &e.Type, &e.ActorID,
			&e.TargetID, &e.Tick, &payloadStr,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteEventRepository) GetByRunID(runID string) ([]events.Event, error) {
	query := `SELECT id, run_id, timestamp, event_type, actor_id, target_id, tick, payload FROM events WHERE run_id = ? ORDER BY tick ASC, timestamp ASC`
	return r.getMany(query, runID)
}

func (r *SQLiteEventRepository) GetByActorID(runID, actorID string) ([]events.Event, error) {
	query := `SELECT id, run_id, timestamp, event_type, actor_id, target_id, tick, payload FROM events WHERE run_id = ? AND actor_id = ? ORDER BY tick ASC, timestamp ASC`
	return r.getMany(query, runID, actorID)
}

func (r *SQLiteEventRepository) GetByTick(runID string, tick int) ([]events.Event, error) {
	query := `SELECT id, run_id, timestamp, event_type, actor_id, target_id, tick, payload FROM events WHERE run_id = ? AND tick = ? ORDER BY timestamp ASC`
	return r.getMany(query, runID, tick)
}

func (r *SQLiteEventRepository) GetByEventType(runID string, eventType events.Type) ([]events.Event, error) {
	query := `SELECT id, run_id, timestamp, event_type, actor_id, target_id, tick, payload FROM events WHERE run_id = ? AND event_type = ? ORDER BY tick ASC, timestamp ASC`
	return r.getMany(query, runID, string(eventType))
}

// ---------------------------------------------------------
// SQLiteRecorder
// ---------------------------------------------------------

// SQLiteRecorder writes one row per alive civilization per tick. It satisfies
// engine.Recorder; the tick's rows and the run's progress update commit in a
// single transaction so a crash never leaves a half-written tick behind.
type SQLiteRecorder struct {
	db *sql.DB
}

func NewSQLiteRecorder(db *sql.DB) *SQLiteRecorder {
	return &SQLiteRecorder{db: db}
}

func (r *SQLiteRecorder) Ready() error {
	if err := r.db.Ping(); err != nil {
		return fmt.Errorf("sqlite not reachable: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Record(snap engine.Snapshot) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO snapshots (run_id, tick, civ_id, strategy, population, resources, x, y, wars_initiated, victories)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, c := range snap.Civs {
		if _, err := tx.Exec(query,
			snap.RunID, snap.Tick, c.ID, string(c.Strategy), c.Population,
			c.Resources, c.X, c.Y, c.WarsInitiated, c.Victories,
		); err != nil {
			return fmt.Errorf("failed to insert snapshot row: %w", err)
		}
	}
	if _, err := tx.Exec(`UPDATE runs SET last_tick = ? WHERE run_id = ?`, snap.Tick, snap.RunID); err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}

	return tx.Commit()
}

// StartRun registers a run before its first snapshot.
func (r *SQLiteRecorder) StartRun(runID string, seed int64, civCount int) error {
	query := `INSERT INTO runs (run_id, started_at, seed, civ_count) VALUES (?, ?, ?, ?)`
	if _, err := r.db.Exec(query, runID, time.Now(), seed, civCount); err != nil {
		return fmt.Errorf("failed to register run: %w", err)
	}
	return nil
}

// FinishRun stores the final state and end classification of a run.
func (r *SQLiteRecorder) FinishRun(result engine.RunResult) error {
	query := `UPDATE runs SET state = ?, end_reason = ?, last_tick = ? WHERE run_id = ?`
	if _, err := r.db.Exec(query, string(result.State), string(result.EndReason), result.Ticks, result.RunID); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// SnapshotsByRun reconstructs the per-tick snapshot sequence of a stored run,
// ordered by tick. Civilizations within a tick come back sorted by id.
func (r *SQLiteRecorder) SnapshotsByRun(runID string) ([]engine.Snapshot, error) {
	query := `
		SELECT tick, civ_id, strategy, population, resources, x, y, wars_initiated, victories
		FROM snapshots WHERE run_id = ? ORDER BY tick ASC, civ_id ASC
	`
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byTick := map[int][]engine.CivState{}
	var ticks []int
	for rows.Next() {
		var tick int
		var c engine.CivState
		var strategy string
		if err := rows.Scan(&tick, &c.ID, &strategy, &c.Population, &c.Resources, &c.X, &c.Y, &c.WarsInitiated, &c.Victories); err != nil {
			return nil, err
		}
		c.Strategy = civ.Strategy(strategy)
		if _, seen := byTick[tick]; !seen {
			ticks = append(ticks, tick)
		}
		byTick[tick] = append(byTick[tick], c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Ints(ticks)
	snaps := make([]engine.Snapshot, 0, len(ticks))
	for _, tick := range ticks {
		snaps = append(snaps, engine.Snapshot{RunID: runID, Tick: tick, Civs: byTick[tick]})
	}
	return snaps, nil
}

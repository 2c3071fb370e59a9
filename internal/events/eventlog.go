// Package events provides the append-only history log for a simulation run.
// Every interaction outcome and extinction is recorded here; the log is the
// historical record consumed by analysis and by live viewers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civforge/civsim/internal/platform/logger"
)

// Type defines the category of a simulation event.
type Type string

const (
	TypeRunStarted Type = "RUN_STARTED"
	TypeRunEnded   Type = "RUN_ENDED"
	TypeAlliance   Type = "ALLIANCE"
	TypeConflict   Type = "CONFLICT"
	TypeConquest   Type = "CONQUEST"
	TypeDeterrence Type = "DETERRENCE"
	TypeExtinction Type = "EXTINCTION"
)

// Event represents an immutable record of something that happened in a run.
type Event struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      Type        `json:"type"`
	ActorID   string      `json:"actor_id"`  // Which civilization drove the event
	TargetID  string      `json:"target_id"` // Which civilization was affected (optional)
	Tick      int         `json:"tick"`
	Payload   interface{} `json:"payload"` // Event-specific data
}

// Persister defines how an event is durably stored.
type Persister interface {
	Append(event Event) error
}

// Log is the in-memory append-only log of simulation events, optionally
// written through to a Persister.
type Log struct {
	mu        sync.RWMutex
	events    []Event
	persister Persister
	logger    *logger.Logger
}

// NewLog creates a new event log with an optional persister.
func NewLog(persister Persister) *Log {
	return &Log{
		events:    make([]Event, 0),
		persister: persister,
		logger:    logger.NewLogger(),
	}
}

// SetLogger replaces the logger used to report persistence failures.
func (l *Log) SetLogger(log *logger.Logger) {
	if log != nil {
		l.logger = log
	}
}

// Append adds a new event to the log. Events are immutable once appended.
// The in-memory log stays authoritative for the run; a failed write-through
// loses durability, not the event, and is reported rather than swallowed.
func (l *Log) Append(event Event) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	if l.persister != nil {
		if err := l.persister.Append(event); err != nil {
			l.logger.Errorf("event %s (%s) not persisted: %v", event.ID, event.Type, err)
		}
	}
}

// Len returns the number of events appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Since returns a copy of the events appended after index n.
// Used by the network hub to push incremental history to viewers.
func (l *Log) Since(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n >= len(l.events) {
		return nil
	}
	out := make([]Event, len(l.events)-n)
	copy(out, l.events[n:])
	return out
}

// ByActor returns all events driven by a specific civilization.
func (l *Log) ByActor(actorID string) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Event
	for _, e := range l.events {
		if e.ActorID == actorID {
			result = append(result, e)
		}
	}
	return result
}

// ByTick returns all events recorded during a specific tick.
func (l *Log) ByTick(tick int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Event
	for _, e := range l.events {
		if e.Tick == tick {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the full history of events.
func (l *Log) Replay() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}

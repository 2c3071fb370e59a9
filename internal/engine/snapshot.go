package engine

import "github.com/civforge/civsim/internal/domain/civ"

// CivState is the per-civilization entry of a snapshot.
type CivState struct {
	ID            string       `json:"id"`
	Strategy      civ.Strategy `json:"strategy"`
	Population    float64      `json:"population"`
	Resources     float64      `json:"resources"`
	X             float64      `json:"x"`
	Y             float64      `json:"y"`
	WarsInitiated int          `json:"wars_initiated"`
	Victories     int          `json:"victories"`
}

// Snapshot is the engine's per-tick output contract: the complete
// alive-civilization state at the end of a tick. Extinct civilizations do
// not appear; their last alive entry remains in the preceding snapshots.
type Snapshot struct {
	RunID string     `json:"run_id"`
	Tick  int        `json:"tick"`
	Civs  []CivState `json:"civs"`
}

// Recorder is the external collaborator that receives one snapshot per
// tick. The engine is agnostic to storage format; the recorder owns any I/O
// latency and must confirm readiness before the run starts.
type Recorder interface {
	// Ready reports whether the recorder can accept output. A non-nil
	// error aborts the run with StorageUnavailableError before tick zero.
	Ready() error

	// Record receives an immutable snapshot. An error is fatal to the
	// run: dropping snapshots silently would corrupt the record.
	Record(snap Snapshot) error
}

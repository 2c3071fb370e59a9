package storage

import "github.com/civforge/civsim/internal/engine"

// MultiRecorder fans every snapshot out to several recorders. Readiness and
// record failures are all-or-nothing: the first error wins.
type MultiRecorder struct {
	recorders []engine.Recorder
}

func NewMultiRecorder(recorders ...engine.Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

// Add attaches another recorder. Only valid before the run starts; some
// recorders need the run id, which is assigned after the scheduler is built.
func (m *MultiRecorder) Add(r engine.Recorder) {
	m.recorders = append(m.recorders, r)
}

func (m *MultiRecorder) Ready() error {
	for _, r := range m.recorders {
		if err := r.Ready(); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiRecorder) Record(snap engine.Snapshot) error {
	for _, r := range m.recorders {
		if err := r.Record(snap); err != nil {
			return err
		}
	}
	return nil
}

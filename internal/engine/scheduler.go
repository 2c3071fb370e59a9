package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/civforge/civsim/internal/events"
	"github.com/civforge/civsim/internal/platform/logger"
	"github.com/civforge/civsim/internal/platform/metrics"
)

// State is the scheduler's lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateStoppedEarly State = "stopped_early"
)

// EndReason classifies how a run terminated.
type EndReason string

const (
	// EndDomination: a strategy that had population at initialization
	// was wiped out.
	EndDomination EndReason = "domination"
	// EndLastStanding: a single civilization remains alive.
	EndLastStanding EndReason = "last_standing"
	// EndStalemate: the maximum tick count was reached with the run
	// still contested.
	EndStalemate EndReason = "stalemate"
)

// SchedulerConfig holds the loop parameters.
type SchedulerConfig struct {
	// MaxTicks is the configured maximum number of ticks.
	MaxTicks int `yaml:"max_ticks" json:"max_ticks"`

	// MaxPartners bounds the per-civilization sample of spatial neighbors
	// paired each tick, keeping per-tick cost sub-quadratic.
	MaxPartners int `yaml:"max_partners" json:"max_partners"`

	// Pace throttles the loop for live viewing. Zero runs flat out.
	Pace time.Duration `yaml:"pace" json:"pace"`
}

// Validate checks the loop parameters.
func (cfg SchedulerConfig) Validate() error {
	if cfg.MaxTicks <= 0 {
		return &ConfigurationError{Field: "max_ticks", Reason: "must be positive"}
	}
	if cfg.MaxPartners <= 0 {
		return &ConfigurationError{Field: "max_partners", Reason: "must be positive"}
	}
	return nil
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID     string    `json:"run_id"`
	State     State     `json:"state"`
	EndReason EndReason `json:"end_reason"`
	Ticks     int       `json:"ticks"`
	Final     Snapshot  `json:"final"`
}

// Scheduler advances the world tick by tick: it selects interacting pairs,
// invokes the resolver, applies dynamics and hands one snapshot per tick to
// the recorder. State machine: Idle -> Running -> {Completed, StoppedEarly}.
type Scheduler struct {
	cfg      SchedulerConfig
	world    *World
	resolver *Resolver
	dynamics *Dynamics
	recorder Recorder
	eventLog *events.Log
	logger   *logger.Logger

	runID     string
	state     State
	endReason EndReason
}

// NewScheduler wires the simulation loop. The run id is assigned here and
// tags every snapshot and history event.
func NewScheduler(cfg SchedulerConfig, w *World, r *Resolver, d *Dynamics, rec Recorder, log *events.Log, appLog *logger.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:      cfg,
		world:    w,
		resolver: r,
		dynamics: d,
		recorder: rec,
		eventLog: log,
		logger:   appLog,
		runID:    uuid.NewString(),
		state:    StateIdle,
	}, nil
}

// RunID returns the identifier assigned to this run.
func (s *Scheduler) RunID() string {
	return s.runID
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() State {
	return s.state
}

// Run executes the simulation to completion or an early stop. It fails fast
// with StorageUnavailableError if the recorder cannot accept output; no
// snapshot is ever dropped silently.
func (s *Scheduler) Run(ctx context.Context) (RunResult, error) {
	if s.state != StateIdle {
		return RunResult{}, &InvalidStateError{Op: "Run", Reason: fmt.Sprintf("scheduler already %s", s.state)}
	}

	if err := s.recorder.Ready(); err != nil {
		return RunResult{}, &StorageUnavailableError{Target: "recorder", Err: err}
	}

	s.dynamics.SetRunID(s.runID)
	s.eventLog.Append(events.Event{
		ID:        events.GenerateEventID(),
		RunID:     s.runID,
		Timestamp: time.Now(),
		Type:      events.TypeRunStarted,
		Tick:      0,
		Payload:   map[string]interface{}{"count": s.world.Config().Count, "seed": s.world.Config().Seed},
	})

	s.state = StateRunning
	s.logger.Event("RUN_STARTED", s.runID, fmt.Sprintf("%d civilizations, seed %d", s.world.Config().Count, s.world.Config().Seed))

	collector := metrics.Get()
	var last Snapshot

	for t := 0; t < s.cfg.MaxTicks; t++ {
		if s.cfg.Pace > 0 {
			select {
			case <-ctx.Done():
				return s.finish(last, ctx.Err())
			case <-time.After(s.cfg.Pace):
			}
		} else if err := ctx.Err(); err != nil {
			return s.finish(last, err)
		}

		tickStart := time.Now()
		aliveBefore := s.world.AliveCount()

		pairs, err := s.buildPairs()
		if err != nil {
			return s.finish(last, err)
		}

		outcomes := make([]InteractionOutcome, 0, len(pairs))
		for _, p := range pairs {
			a, _ := s.world.Civ(p.a)
			b, _ := s.world.Civ(p.b)
			out, err := s.resolver.Resolve(a, b, s.world.Rand())
			if err != nil {
				return s.finish(last, err)
			}
			outcomes = append(outcomes, out)
		}

		for _, out := range outcomes {
			if err := s.dynamics.ApplyOutcome(s.world, out); err != nil {
				return s.finish(last, err)
			}
		}

		// Background growth sees the post-interaction state.
		s.dynamics.ApplyGrowth(s.world)

		// Atomic-per-tick visibility: the snapshot is only taken after
		// the tick's updates are fully applied.
		snap := s.world.Snapshot(s.runID)
		writeStart := time.Now()
		err = s.recorder.Record(snap)
		collector.RecordSnapshotWrite(time.Since(writeStart), err)
		if err != nil {
			return s.finish(last, &StorageUnavailableError{Target: "recorder", Err: err})
		}
		last = snap

		collector.RecordTick(time.Since(tickStart))
		collector.RecordPairsResolved(len(pairs))
		for i := s.world.AliveCount(); i < aliveBefore; i++ {
			collector.RecordExtinction()
		}

		s.world.AdvanceTick()

		if reason, stopped := s.stopCondition(); stopped {
			s.state = StateStoppedEarly
			s.endReason = reason
			break
		}
	}

	if s.state == StateRunning {
		s.state = StateCompleted
		s.endReason = EndStalemate
	}

	return s.finish(last, nil)
}

func (s *Scheduler) finish(last Snapshot, err error) (RunResult, error) {
	// An aborted run still lands in a terminal state; the error carries the
	// cause, so no end reason is classified.
	if err != nil && s.state == StateRunning {
		s.state = StateStoppedEarly
	}
	result := RunResult{
		RunID:     s.runID,
		State:     s.state,
		EndReason: s.endReason,
		Ticks:     s.world.Tick(),
		Final:     last,
	}
	if err != nil {
		return result, err
	}

	s.eventLog.Append(events.Event{
		ID:        events.GenerateEventID(),
		RunID:     s.runID,
		Timestamp: time.Now(),
		Type:      events.TypeRunEnded,
		Tick:      s.world.Tick(),
		Payload:   map[string]interface{}{"state": string(s.state), "end_reason": string(s.endReason)},
	})
	metrics.Get().RecordRunEnd(s.state == StateStoppedEarly)
	s.logger.Event("RUN_ENDED", s.runID, fmt.Sprintf("%s (%s) after %d ticks", s.state, s.endReason, s.world.Tick()))
	return result, nil
}

// stopCondition checks the early-stop rules after a completed tick: a
// strategy present at initialization wiped out, or a contested world reduced
// to a single survivor. A world that starts with one civilization is allowed
// to run out the clock on background growth alone.
func (s *Scheduler) stopCondition() (EndReason, bool) {
	for _, strat := range s.world.InitialStrategies() {
		if s.world.StrategyPopulation(strat) == 0 {
			return EndDomination, true
		}
	}
	if s.world.Config().Count > 1 && s.world.AliveCount() == 1 {
		return EndLastStanding, true
	}
	return "", false
}

type civPair struct {
	a, b string
}

// buildPairs selects this tick's interaction pairs: every alive civilization
// paired with a bounded sample of its spatial neighbors. Pairs are
// normalized and deduplicated, so no pair resolves twice within a tick, and
// extinct civilizations are excluded before resolution.
func (s *Scheduler) buildPairs() ([]civPair, error) {
	radius := s.world.Config().NeighborRadius
	seen := make(map[civPair]bool)
	var out []civPair

	for _, id := range s.world.AliveIDs() {
		neighbors, err := s.world.Neighbors(id, radius)
		if err != nil {
			return nil, err
		}

		if len(neighbors) > s.cfg.MaxPartners {
			idx := s.world.Rand().Perm(len(neighbors))[:s.cfg.MaxPartners]
			sort.Ints(idx)
			sample := make([]string, 0, s.cfg.MaxPartners)
			for _, i := range idx {
				sample = append(sample, neighbors[i])
			}
			neighbors = sample
		}

		for _, nid := range neighbors {
			p := civPair{a: id, b: nid}
			if nid < id {
				p = civPair{a: nid, b: id}
			}
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

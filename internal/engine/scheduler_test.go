package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/civforge/civsim/internal/domain/civ"
	"github.com/civforge/civsim/internal/events"
	"github.com/civforge/civsim/internal/platform/logger"
)

// memoryRecorder collects snapshots in-process for assertions.
type memoryRecorder struct {
	snaps    []Snapshot
	readyErr error
	failAt   int // fail the Nth Record call (1-based); 0 = never
}

func (r *memoryRecorder) Ready() error {
	return r.readyErr
}

func (r *memoryRecorder) Record(snap Snapshot) error {
	if r.failAt > 0 && len(r.snaps)+1 == r.failAt {
		return errors.New("disk full")
	}
	r.snaps = append(r.snaps, snap)
	return nil
}

func runScenario(t *testing.T, worldCfg WorldConfig, schedCfg SchedulerConfig) (*memoryRecorder, *events.Log, RunResult) {
	t.Helper()

	w, err := NewWorld(worldCfg)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	log := events.NewLog(nil)
	silent := logger.NewSilentLogger()
	d := NewDynamics(log, silent, 0.01)
	rec := &memoryRecorder{}

	s, err := NewScheduler(schedCfg, w, NewResolver(DefaultTunables()), d, rec, log, silent)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return rec, log, result
}

func defaultSchedCfg() SchedulerConfig {
	return SchedulerConfig{MaxTicks: 200, MaxPartners: 3}
}

func TestRunScenarioTenCivsSeed42(t *testing.T) {
	rec, _, result := runScenario(t, validConfig(), defaultSchedCfg())

	if result.State != StateCompleted && result.State != StateStoppedEarly {
		t.Fatalf("Expected Completed or StoppedEarly, got %s", result.State)
	}
	if result.State == StateCompleted && result.EndReason != EndStalemate {
		t.Errorf("Completed run must end in stalemate, got %s", result.EndReason)
	}
	if len(rec.snaps) != result.Ticks {
		t.Fatalf("Expected one snapshot per tick: %d snaps, %d ticks", len(rec.snaps), result.Ticks)
	}

	// Non-negativity invariant over the whole history.
	for _, snap := range rec.snaps {
		for _, cs := range snap.Civs {
			if cs.Population < 0 || cs.Resources < 0 {
				t.Fatalf("Negative quantity at tick %d: %+v", snap.Tick, cs)
			}
		}
	}

	// An extinct civilization never reappears in a later snapshot.
	gone := map[string]bool{}
	prev := map[string]bool{}
	for i, snap := range rec.snaps {
		now := map[string]bool{}
		for _, cs := range snap.Civs {
			now[cs.ID] = true
			if gone[cs.ID] {
				t.Fatalf("Civilization %s reappeared at tick %d", cs.ID, snap.Tick)
			}
		}
		if i > 0 {
			for id := range prev {
				if !now[id] {
					gone[id] = true
				}
			}
		}
		prev = now
	}
}

func TestRunDeterministicForSeed(t *testing.T) {
	rec1, _, res1 := runScenario(t, validConfig(), defaultSchedCfg())
	rec2, _, res2 := runScenario(t, validConfig(), defaultSchedCfg())

	if res1.State != res2.State || res1.EndReason != res2.EndReason || res1.Ticks != res2.Ticks {
		t.Fatalf("Run results diverged: %+v vs %+v", res1, res2)
	}
	if len(rec1.snaps) != len(rec2.snaps) {
		t.Fatalf("Snapshot counts diverged: %d vs %d", len(rec1.snaps), len(rec2.snaps))
	}

	// Byte-identical snapshot sequences, ignoring the per-run id.
	for i := range rec1.snaps {
		a, b := rec1.snaps[i], rec2.snaps[i]
		a.RunID, b.RunID = "", ""
		ja, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		jb, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(ja) != string(jb) {
			t.Fatalf("Snapshot %d differs between identical runs:\n%s\n%s", i, ja, jb)
		}
	}
}

func TestLoneDiplomatSurvivesOnGrowthAlone(t *testing.T) {
	cfg := validConfig()
	cfg.Count = 1
	cfg.StrategyRatio = 0

	rec, log, result := runScenario(t, cfg, SchedulerConfig{MaxTicks: 50, MaxPartners: 3})

	if result.State != StateCompleted {
		t.Fatalf("Lone civilization must run out the clock, got %s (%s)", result.State, result.EndReason)
	}
	if len(rec.snaps) != 50 {
		t.Fatalf("Expected 50 snapshots, got %d", len(rec.snaps))
	}

	// No interaction outcomes are ever generated for it.
	for _, e := range log.Replay() {
		switch e.Type {
		case events.TypeAlliance, events.TypeConflict, events.TypeConquest, events.TypeDeterrence:
			t.Fatalf("Unexpected interaction event %s for a lone civilization", e.Type)
		}
	}

	first := rec.snaps[0].Civs[0]
	last := rec.snaps[len(rec.snaps)-1].Civs[0]
	if last.Population <= first.Population {
		t.Errorf("Background growth should raise population: %g -> %g", first.Population, last.Population)
	}
}

func TestStopsEarlyOnDomination(t *testing.T) {
	// One overwhelming aggressor against one weak diplomat in a tiny
	// extent: conquest drains the diplomat within a few ticks.
	cfg := WorldConfig{
		Count:           2,
		StrategyRatio:   0.5,
		Extent:          Extent{Width: 5, Height: 5},
		StartPopulation: 100,
		StartResources:  50,
		NeighborRadius:  20,
		Seed:            7,
	}

	w, err := NewWorld(cfg)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	// Tilt the board so the aggressor always wins the conquest roll.
	log := events.NewLog(nil)
	silent := logger.NewSilentLogger()
	d := NewDynamics(log, silent, 0) // no growth: the diplomat cannot recover
	r := NewResolver(DefaultTunables())
	r.SetConquestCurve(func(a, dPop, scale float64) float64 { return 1 })

	rec := &memoryRecorder{}
	s, err := NewScheduler(SchedulerConfig{MaxTicks: 500, MaxPartners: 3}, w, r, d, rec, log, silent)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.State != StateStoppedEarly {
		t.Fatalf("Expected early stop, got %s after %d ticks", result.State, result.Ticks)
	}
	if result.EndReason != EndDomination && result.EndReason != EndLastStanding {
		t.Errorf("Expected domination or last-standing, got %s", result.EndReason)
	}
}

func TestRunFailsFastWhenRecorderNotReady(t *testing.T) {
	w, err := NewWorld(validConfig())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	log := events.NewLog(nil)
	silent := logger.NewSilentLogger()
	rec := &memoryRecorder{readyErr: errors.New("target directory missing")}

	s, err := NewScheduler(defaultSchedCfg(), w, NewResolver(DefaultTunables()), NewDynamics(log, silent, 0.01), rec, log, silent)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	_, err = s.Run(context.Background())
	var storageErr *StorageUnavailableError
	if !errors.As(err, &storageErr) {
		t.Fatalf("Expected StorageUnavailableError, got %v", err)
	}
	if len(rec.snaps) != 0 {
		t.Errorf("No snapshot may be emitted when storage is unavailable")
	}
}

func TestRunAbortsOnRecordFailure(t *testing.T) {
	w, err := NewWorld(validConfig())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	log := events.NewLog(nil)
	silent := logger.NewSilentLogger()
	rec := &memoryRecorder{failAt: 3}

	s, err := NewScheduler(defaultSchedCfg(), w, NewResolver(DefaultTunables()), NewDynamics(log, silent, 0.01), rec, log, silent)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	_, err = s.Run(context.Background())
	var storageErr *StorageUnavailableError
	if !errors.As(err, &storageErr) {
		t.Fatalf("Expected StorageUnavailableError mid-run, got %v", err)
	}
}

func TestSchedulerRejectsSecondRun(t *testing.T) {
	w, err := NewWorld(validConfig())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	log := events.NewLog(nil)
	silent := logger.NewSilentLogger()

	s, err := NewScheduler(SchedulerConfig{MaxTicks: 5, MaxPartners: 2}, w, NewResolver(DefaultTunables()), NewDynamics(log, silent, 0.01), s2rec(), log, silent)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	_, err = s.Run(context.Background())
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Errorf("Expected InvalidStateError on second Run, got %v", err)
	}
}

func s2rec() *memoryRecorder { return &memoryRecorder{} }

func TestPopulationConservationPerTick(t *testing.T) {
	// With growth disabled, total population can only shrink or hold:
	// interactions transfer or destroy, never create.
	w, err := NewWorld(validConfig())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	log := events.NewLog(nil)
	silent := logger.NewSilentLogger()
	rec := &memoryRecorder{}

	s, err := NewScheduler(SchedulerConfig{MaxTicks: 100, MaxPartners: 3}, w, NewResolver(DefaultTunables()), NewDynamics(log, silent, 0), rec, log, silent)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	prev := -1.0
	for _, snap := range rec.snaps {
		total := 0.0
		for _, cs := range snap.Civs {
			total += cs.Population
		}
		if prev >= 0 && total > prev+1e-9 {
			t.Fatalf("Population created at tick %d: %g -> %g", snap.Tick, prev, total)
		}
		prev = total
	}
}

func TestBuildPairsUniqueAndBounded(t *testing.T) {
	// Small extent with a radius covering it, so every civilization sees
	// every other one and the sampling bound is actually exercised.
	cfg := WorldConfig{
		Count:           12,
		StrategyRatio:   0.5,
		Extent:          Extent{Width: 10, Height: 10},
		StartPopulation: 100,
		StartResources:  50,
		NeighborRadius:  50,
		Seed:            42,
	}
	w, err := NewWorld(cfg)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	log := events.NewLog(nil)
	silent := logger.NewSilentLogger()
	schedCfg := SchedulerConfig{MaxTicks: 10, MaxPartners: 2}
	s, err := NewScheduler(schedCfg, w, NewResolver(DefaultTunables()), NewDynamics(log, silent, 0), &memoryRecorder{}, log, silent)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	pairs, err := s.buildPairs()
	if err != nil {
		t.Fatalf("buildPairs: %v", err)
	}
	if len(pairs) == 0 {
		t.Fatal("Expected pairs in a dense world")
	}

	seen := map[civPair]bool{}
	for _, p := range pairs {
		if p.a == p.b {
			t.Errorf("Self-pair %s", p.a)
		}
		if p.b < p.a {
			t.Errorf("Pair %v not normalized", p)
		}
		if seen[p] {
			t.Errorf("Pair %v selected twice in one tick", p)
		}
		seen[p] = true
	}

	// Every civilization contributes at most MaxPartners new pairs.
	if bound := w.AliveCount() * schedCfg.MaxPartners; len(pairs) > bound {
		t.Errorf("Got %d pairs for %d civilizations with %d partners each, want at most %d",
			len(pairs), w.AliveCount(), schedCfg.MaxPartners, bound)
	}

	// An extinct civilization drops out of pairing entirely.
	dead := w.AliveIDs()[0]
	w.MarkExtinct(dead)
	pairs, err = s.buildPairs()
	if err != nil {
		t.Fatalf("buildPairs: %v", err)
	}
	for _, p := range pairs {
		if p.a == dead || p.b == dead {
			t.Errorf("Extinct civilization %s still paired: %v", dead, p)
		}
	}
}

func TestCanceledRunLandsInTerminalState(t *testing.T) {
	w, err := NewWorld(validConfig())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	log := events.NewLog(nil)
	silent := logger.NewSilentLogger()
	rec := &memoryRecorder{}

	s, err := NewScheduler(SchedulerConfig{MaxTicks: 100, MaxPartners: 3, Pace: time.Millisecond},
		w, NewResolver(DefaultTunables()), NewDynamics(log, silent, 0.01), rec, log, silent)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if result.State != StateStoppedEarly {
		t.Errorf("Canceled run must report a terminal state, got %q", result.State)
	}
	if s.State() != StateStoppedEarly {
		t.Errorf("Scheduler left in %q after cancellation", s.State())
	}
}

func TestStrategyCountsInSnapshots(t *testing.T) {
	rec, _, _ := runScenario(t, validConfig(), defaultSchedCfg())

	for _, snap := range rec.snaps {
		for _, cs := range snap.Civs {
			if cs.Strategy != civ.StrategyAggressive && cs.Strategy != civ.StrategyDiplomatic {
				t.Fatalf("Unknown strategy in snapshot: %+v", cs)
			}
		}
	}
}

func ExampleScheduler_Run() {
	w, _ := NewWorld(WorldConfig{
		Count:           4,
		StrategyRatio:   0.5,
		Extent:          Extent{Width: 20, Height: 20},
		StartPopulation: 100,
		StartResources:  50,
		NeighborRadius:  30,
		Seed:            1,
	})
	log := events.NewLog(nil)
	silent := logger.NewSilentLogger()
	s, _ := NewScheduler(SchedulerConfig{MaxTicks: 10, MaxPartners: 2}, w,
		NewResolver(DefaultTunables()), NewDynamics(log, silent, 0.01), &memoryRecorder{}, log, silent)

	result, _ := s.Run(context.Background())
	fmt.Println(result.Ticks <= 10)
	// Output: true
}

// Package engine contains the simulation core: the world model, interaction
// resolution, population dynamics and the tick scheduler.
//
// ARCHITECTURAL RULE: the Resolver never mutates civilizations. It produces
// outcomes; Dynamics applies them. The random source is owned by the World
// and is the only source of randomness in a run.
package engine

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/civforge/civsim/internal/domain/civ"
)

// Extent describes the rectangular spatial area civilizations are placed in.
type Extent struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// WorldConfig holds the parameters validated at world initialization.
type WorldConfig struct {
	Count           int     `yaml:"count" json:"count"`
	StrategyRatio   float64 `yaml:"strategy_ratio" json:"strategy_ratio"` // fraction aggressive
	Extent          Extent  `yaml:"extent" json:"extent"`
	StartPopulation float64 `yaml:"start_population" json:"start_population"`
	StartResources  float64 `yaml:"start_resources" json:"start_resources"`
	NeighborRadius  float64 `yaml:"neighbor_radius" json:"neighbor_radius"`
	Seed            int64   `yaml:"seed" json:"seed"`
}

// Validate checks the configuration surface. Any violation is a
// ConfigurationError and no world is created.
func (cfg WorldConfig) Validate() error {
	if cfg.Count <= 0 {
		return &ConfigurationError{Field: "count", Reason: fmt.Sprintf("must be positive, got %d", cfg.Count)}
	}
	if cfg.StrategyRatio < 0 || cfg.StrategyRatio > 1 {
		return &ConfigurationError{Field: "strategy_ratio", Reason: fmt.Sprintf("must be in [0,1], got %g", cfg.StrategyRatio)}
	}
	if cfg.Extent.Width <= 0 || cfg.Extent.Height <= 0 {
		return &ConfigurationError{Field: "extent", Reason: fmt.Sprintf("degenerate area %gx%g", cfg.Extent.Width, cfg.Extent.Height)}
	}
	if cfg.StartPopulation <= 0 {
		return &ConfigurationError{Field: "start_population", Reason: "must be positive"}
	}
	if cfg.StartResources < 0 {
		return &ConfigurationError{Field: "start_resources", Reason: "must be non-negative"}
	}
	if cfg.NeighborRadius <= 0 {
		return &ConfigurationError{Field: "neighbor_radius", Reason: "must be positive"}
	}
	return nil
}

// World owns the set of civilizations, the spatial index used for adjacency
// queries, the tick counter and the seeded random source.
type World struct {
	cfg   WorldConfig
	civs  map[string]*civ.Civilization
	order []string // creation order, the deterministic iteration order
	index *gridIndex
	rng   *rand.Rand
	tick  int

	// Strategies present at initialization. Stop conditions only consider
	// these: a strategy that never had population cannot "reach zero".
	initialStrategies map[civ.Strategy]bool
}

// NewWorld validates cfg, seeds the random source and places cfg.Count
// civilizations within the extent. Strategy assignment and placement are
// reproducible from the seed.
func NewWorld(cfg WorldConfig) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &World{
		cfg:               cfg,
		civs:              make(map[string]*civ.Civilization, cfg.Count),
		order:             make([]string, 0, cfg.Count),
		index:             newGridIndex(cfg.NeighborRadius),
		rng:               rand.New(rand.NewSource(cfg.Seed)),
		initialStrategies: make(map[civ.Strategy]bool),
	}

	nAggressive := int(math.Round(cfg.StrategyRatio * float64(cfg.Count)))
	strategies := make([]civ.Strategy, cfg.Count)
	for i := range strategies {
		if i < nAggressive {
			strategies[i] = civ.StrategyAggressive
		} else {
			strategies[i] = civ.StrategyDiplomatic
		}
	}
	// Shuffle so the strategy mix is not tied to id order.
	w.rng.Shuffle(len(strategies), func(i, j int) {
		strategies[i], strategies[j] = strategies[j], strategies[i]
	})

	for i := 0; i < cfg.Count; i++ {
		id := fmt.Sprintf("CIV_%03d", i+1)
		pos := civ.Position{
			X: w.rng.Float64() * cfg.Extent.Width,
			Y: w.rng.Float64() * cfg.Extent.Height,
		}
		c := civ.New(id, strategies[i], cfg.StartPopulation, cfg.StartResources, pos)
		w.civs[id] = c
		w.order = append(w.order, id)
		w.index.insert(id, pos)
		w.initialStrategies[c.Strategy] = true
	}

	return w, nil
}

// Config returns the configuration the world was built from.
func (w *World) Config() WorldConfig {
	return w.cfg
}

// Rand returns the world's random source. Single-owner: only the scheduler
// and resolver may draw from it, and never concurrently.
func (w *World) Rand() *rand.Rand {
	return w.rng
}

// Tick returns the current tick counter.
func (w *World) Tick() int {
	return w.tick
}

// AdvanceTick increments the tick counter. Called by the scheduler only,
// after a tick's updates are fully applied.
func (w *World) AdvanceTick() {
	w.tick++
}

// Civ returns the civilization with the given id.
func (w *World) Civ(id string) (*civ.Civilization, bool) {
	c, ok := w.civs[id]
	return c, ok
}

// AliveIDs returns the ids of alive civilizations in creation order.
func (w *World) AliveIDs() []string {
	out := make([]string, 0, len(w.order))
	for _, id := range w.order {
		if w.civs[id].Alive() {
			out = append(out, id)
		}
	}
	return out
}

// AliveCount returns the number of civilizations still alive.
func (w *World) AliveCount() int {
	n := 0
	for _, c := range w.civs {
		if c.Alive() {
			n++
		}
	}
	return n
}

// StrategyPopulation returns the total population held by a strategy.
func (w *World) StrategyPopulation(s civ.Strategy) float64 {
	total := 0.0
	for _, c := range w.civs {
		if c.Alive() && c.Strategy == s {
			total += c.Population
		}
	}
	return total
}

// InitialStrategies returns the strategies that had population at
// initialization time.
func (w *World) InitialStrategies() []civ.Strategy {
	out := make([]civ.Strategy, 0, len(w.initialStrategies))
	for _, s := range []civ.Strategy{civ.StrategyDiplomatic, civ.StrategyAggressive} {
		if w.initialStrategies[s] {
			out = append(out, s)
		}
	}
	return out
}

// Neighbors returns the alive civilizations within radius of the given
// civilization, excluding itself. Extinct civilizations never appear.
func (w *World) Neighbors(civID string, radius float64) ([]string, error) {
	c, ok := w.civs[civID]
	if !ok {
		return nil, &InvalidStateError{Op: "Neighbors", CivID: civID, Reason: "unknown civilization"}
	}
	if !c.Alive() {
		return nil, &InvalidStateError{Op: "Neighbors", CivID: civID, Reason: "extinct civilization"}
	}
	return w.index.within(civID, c.Position, radius), nil
}

// MarkExtinct transitions a civilization to extinct and removes it from the
// spatial index so it can never be paired again.
func (w *World) MarkExtinct(id string) {
	c, ok := w.civs[id]
	if !ok {
		return
	}
	c.MarkExtinct()
	w.index.remove(id)
}

// Snapshot captures the complete alive-civilization state for the current
// tick. The returned value is immutable once emitted; ownership passes to
// the recorder.
func (w *World) Snapshot(runID string) Snapshot {
	snap := Snapshot{
		RunID: runID,
		Tick:  w.tick,
		Civs:  make([]CivState, 0, len(w.order)),
	}
	for _, id := range w.order {
		c := w.civs[id]
		if !c.Alive() {
			continue
		}
		snap.Civs = append(snap.Civs, CivState{
			ID:            c.ID,
			Strategy:      c.Strategy,
			Population:    c.Population,
			Resources:     c.Resources,
			X:             c.Position.X,
			Y:             c.Position.Y,
			WarsInitiated: c.WarsInitiated,
			Victories:     c.Victories,
		})
	}
	return snap
}

package engine

import (
	"fmt"
	"time"

	"github.com/civforge/civsim/internal/domain/civ"
	"github.com/civforge/civsim/internal/events"
	"github.com/civforge/civsim/internal/platform/logger"
)

// GrowthCurve maps a civilization's current resources to the background
// population growth applied each tick. The exact form is a modeling choice,
// so it is pluggable behind Dynamics rather than hard-coded.
type GrowthCurve func(resources, rate float64) float64

// LinearGrowth is the default: growth = rate * resources, floored at zero so
// the background term can never destroy population.
func LinearGrowth(resources, rate float64) float64 {
	g := rate * resources
	if g < 0 {
		return 0
	}
	return g
}

// DefaultExtinctionFloor is the minimum viable population. Fractional
// transfers shrink a population geometrically and would never reach exactly
// zero; below this floor a civilization is considered wiped out.
const DefaultExtinctionFloor = 1.0

// Dynamics applies interaction outcomes and the per-tick background growth
// to the world, enforcing the clamping and extinction invariants. It is the
// only component that mutates civilizations.
type Dynamics struct {
	eventLog        *events.Log
	logger          *logger.Logger
	growthRate      float64
	curve           GrowthCurve
	extinctionFloor float64
	runID           string
}

// NewDynamics creates the population dynamics component.
func NewDynamics(eventLog *events.Log, log *logger.Logger, growthRate float64) *Dynamics {
	return &Dynamics{
		eventLog:        eventLog,
		logger:          log,
		growthRate:      growthRate,
		curve:           LinearGrowth,
		extinctionFloor: DefaultExtinctionFloor,
	}
}

// SetExtinctionFloor overrides the minimum viable population.
func (d *Dynamics) SetExtinctionFloor(floor float64) {
	if floor >= 0 {
		d.extinctionFloor = floor
	}
}

// SetGrowthCurve swaps the background growth function.
func (d *Dynamics) SetGrowthCurve(curve GrowthCurve) {
	if curve != nil {
		d.curve = curve
	}
}

// SetRunID tags emitted history events with the current run.
func (d *Dynamics) SetRunID(runID string) {
	d.runID = runID
}

var outcomeEventType = map[OutcomeKind]events.Type{
	OutcomeAlliance:   events.TypeAlliance,
	OutcomeConflict:   events.TypeConflict,
	OutcomeConquest:   events.TypeConquest,
	OutcomeDeterrence: events.TypeDeterrence,
}

// ApplyOutcome mutates the two referenced civilizations per the outcome.
// Transfers are clamped so population and resources never go negative; a
// civilization driven to zero population transitions to extinct and leaves
// the interaction pool.
//
// A civilization can die while earlier outcomes of the same tick are being
// applied. An outcome whose parties are no longer both alive is stale and is
// skipped whole: applying one side of a transfer would create or leak
// population.
func (d *Dynamics) ApplyOutcome(w *World, out InteractionOutcome) error {
	a, okA := w.Civ(out.AID)
	b, okB := w.Civ(out.BID)
	if !okA {
		return &InvalidStateError{Op: "ApplyOutcome", CivID: out.AID, Reason: "unknown civilization"}
	}
	if !okB {
		return &InvalidStateError{Op: "ApplyOutcome", CivID: out.BID, Reason: "unknown civilization"}
	}
	if !a.Alive() || !b.Alive() {
		return nil
	}

	if out.Attacker != "" {
		if attacker, ok := w.Civ(out.Attacker); ok {
			attacker.WarsInitiated++
		}
	}

	a.AdjustResources(out.AResDelta)
	b.AdjustResources(out.BResDelta)
	extinctA := a.AdjustPopulation(out.APopDelta)
	extinctB := b.AdjustPopulation(out.BPopDelta)

	// Below the minimum viable population a civilization cannot recover.
	// The floor only applies to a side the outcome actually cost population;
	// an alliance or a deterred attack never kills anyone.
	if !extinctA && a.Alive() && out.APopDelta < 0 && a.Population < d.extinctionFloor {
		extinctA = true
	}
	if !extinctB && b.Alive() && out.BPopDelta < 0 && b.Population < d.extinctionFloor {
		extinctB = true
	}

	d.emitOutcome(w, out)

	if extinctA {
		d.onExtinction(w, a, out.Attacker)
	}
	if extinctB {
		d.onExtinction(w, b, out.Attacker)
	}
	return nil
}

// ApplyGrowth applies the background growth term to every alive
// civilization. Called once per tick, strictly after all interaction
// outcomes for that tick, so growth sees the post-interaction state.
func (d *Dynamics) ApplyGrowth(w *World) {
	for _, id := range w.AliveIDs() {
		c, _ := w.Civ(id)
		c.AdjustPopulation(d.curve(c.Resources, d.growthRate))
	}
}

func (d *Dynamics) emitOutcome(w *World, out InteractionOutcome) {
	actor, target := out.AID, out.BID
	if out.Attacker == out.BID {
		actor, target = out.BID, out.AID
	}
	d.eventLog.Append(events.Event{
		ID:        events.GenerateEventID(),
		RunID:     d.runID,
		Timestamp: time.Now(),
		Type:      outcomeEventType[out.Kind],
		ActorID:   actor,
		TargetID:  target,
		Tick:      w.Tick(),
		Payload: map[string]interface{}{
			"a_pop_delta": out.APopDelta,
			"a_res_delta": out.AResDelta,
			"b_pop_delta": out.BPopDelta,
			"b_res_delta": out.BResDelta,
		},
	})
}

func (d *Dynamics) onExtinction(w *World, c *civ.Civilization, attackerID string) {
	w.MarkExtinct(c.ID)

	if attackerID != "" && attackerID != c.ID {
		if attacker, ok := w.Civ(attackerID); ok && attacker.Alive() {
			attacker.Victories++
		}
	}

	d.eventLog.Append(events.Event{
		ID:        events.GenerateEventID(),
		RunID:     d.runID,
		Timestamp: time.Now(),
		Type:      events.TypeExtinction,
		ActorID:   attackerID,
		TargetID:  c.ID,
		Tick:      w.Tick(),
		Payload:   map[string]interface{}{"strategy": string(c.Strategy)},
	})
	d.logger.Event("EXTINCTION", c.ID, fmt.Sprintf("%s wiped out at tick %d", c.ID, w.Tick()))
}

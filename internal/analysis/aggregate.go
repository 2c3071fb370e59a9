// Package analysis derives summary statistics from the snapshot stream:
// per-strategy population share over time and the dominant strategy per
// tick. Consumed by visualization and by the batch summary.
package analysis

import (
	"github.com/civforge/civsim/internal/domain/civ"
	"github.com/civforge/civsim/internal/engine"
)

// Dominance labels which strategy holds strictly more aggregate population.
type Dominance string

const (
	DominantDiplomatic Dominance = "diplomatic"
	DominantAggressive Dominance = "aggressive"
	DominantTied       Dominance = "tied"
	DominantNone       Dominance = "none" // no civilization alive
)

// StrategyStats summarizes one strategy at one tick.
type StrategyStats struct {
	Population float64 `json:"population"`
	Fraction   float64 `json:"fraction"`
	AliveCivs  int     `json:"alive_civs"`
}

// Point is the aggregate for a single tick.
type Point struct {
	Tick            int                           `json:"tick"`
	TotalPopulation float64                       `json:"total_population"`
	AliveCivs       int                           `json:"alive_civs"`
	Strategies      map[civ.Strategy]StrategyStats `json:"strategies"`
	Dominant        Dominance                     `json:"dominant"`
}

// TimeSeries is the ordered aggregate over a run.
type TimeSeries struct {
	RunID  string  `json:"run_id"`
	Points []Point `json:"points"`
}

// FinalDominant returns the dominance label of the last point, or
// DominantNone for an empty series.
func (ts TimeSeries) FinalDominant() Dominance {
	if len(ts.Points) == 0 {
		return DominantNone
	}
	return ts.Points[len(ts.Points)-1].Dominant
}

// Aggregator consumes snapshots in tick order and accumulates the series.
type Aggregator struct {
	series TimeSeries
}

// NewAggregator creates an empty aggregator for a run.
func NewAggregator(runID string) *Aggregator {
	return &Aggregator{series: TimeSeries{RunID: runID}}
}

// Observe folds one snapshot into the series. Snapshots must arrive in tick
// order; the aggregator does not reorder.
func (a *Aggregator) Observe(snap engine.Snapshot) {
	point := Point{
		Tick:       snap.Tick,
		Strategies: make(map[civ.Strategy]StrategyStats, 2),
	}

	for _, s := range []civ.Strategy{civ.StrategyDiplomatic, civ.StrategyAggressive} {
		point.Strategies[s] = StrategyStats{}
	}

	for _, cs := range snap.Civs {
		stats := point.Strategies[cs.Strategy]
		stats.Population += cs.Population
		stats.AliveCivs++
		point.Strategies[cs.Strategy] = stats

		point.TotalPopulation += cs.Population
		point.AliveCivs++
	}

	// Fractions report 0 for a strategy with no survivors; never divide
	// by zero.
	if point.TotalPopulation > 0 {
		for s, stats := range point.Strategies {
			stats.Fraction = stats.Population / point.TotalPopulation
			point.Strategies[s] = stats
		}
	}

	point.Dominant = dominance(point)
	a.series.Points = append(a.series.Points, point)
}

// Series returns the accumulated time series.
func (a *Aggregator) Series() TimeSeries {
	return a.series
}

// Aggregate consumes a complete snapshot sequence in one call.
func Aggregate(runID string, snaps []engine.Snapshot) TimeSeries {
	agg := NewAggregator(runID)
	for _, snap := range snaps {
		agg.Observe(snap)
	}
	return agg.Series()
}

func dominance(p Point) Dominance {
	if p.AliveCivs == 0 {
		return DominantNone
	}
	d := p.Strategies[civ.StrategyDiplomatic].Population
	g := p.Strategies[civ.StrategyAggressive].Population
	switch {
	case d > g:
		return DominantDiplomatic
	case g > d:
		return DominantAggressive
	default:
		return DominantTied
	}
}

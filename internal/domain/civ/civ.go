// Package civ defines the core domain entity for the simulation.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package civ

import "fmt"

// Strategy is the behavioral type of a civilization. It is fixed for the
// civilization's lifetime.
type Strategy string

const (
	StrategyDiplomatic Strategy = "diplomatic"
	StrategyAggressive Strategy = "aggressive"
)

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	return s == StrategyDiplomatic || s == StrategyAggressive
}

// Status marks whether a civilization still participates in the simulation.
type Status string

const (
	StatusAlive   Status = "alive"
	StatusExtinct Status = "extinct"
)

// Position is a coordinate in the world's spatial extent, fixed at creation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Civilization represents a single agent: identity, strategy, strength and
// holdings. Population is the primary strength measure; resources represent
// territory and holdings consumed or gained through interactions.
type Civilization struct {
	ID       string   `json:"id"`
	Strategy Strategy `json:"strategy"`

	Population float64 `json:"population"`
	Resources  float64 `json:"resources"`

	Status   Status   `json:"status"`
	Position Position `json:"position"`

	// Conflict bookkeeping, carried into snapshots.
	WarsInitiated int `json:"wars_initiated"`
	Victories     int `json:"victories"`
}

// New creates a fresh civilization. Population and resources are clamped at
// zero so a civilization can never be born in violation of its invariants.
func New(id string, strategy Strategy, population, resources float64, pos Position) *Civilization {
	if population < 0 {
		population = 0
	}
	if resources < 0 {
		resources = 0
	}
	c := &Civilization{
		ID:         id,
		Strategy:   strategy,
		Population: population,
		Resources:  resources,
		Status:     StatusAlive,
		Position:   pos,
	}
	if population == 0 {
		c.Status = StatusExtinct
	}
	return c
}

// Alive reports whether the civilization may still interact.
func (c *Civilization) Alive() bool {
	return c.Status == StatusAlive
}

// MarkExtinct transitions the civilization to extinct. The transition is
// terminal: population stays at zero and the civilization never returns to
// the interaction pool.
func (c *Civilization) MarkExtinct() {
	c.Population = 0
	c.Status = StatusExtinct
}

// AdjustPopulation applies a population delta, clamping at zero. It returns
// true when the adjustment drove the civilization extinct. Adjusting an
// already extinct civilization is a no-op.
func (c *Civilization) AdjustPopulation(delta float64) bool {
	if c.Status == StatusExtinct {
		return false
	}
	c.Population += delta
	if c.Population <= 0 {
		c.MarkExtinct()
		return true
	}
	return false
}

// AdjustResources applies a resource delta, clamping at zero.
func (c *Civilization) AdjustResources(delta float64) {
	c.Resources += delta
	if c.Resources < 0 {
		c.Resources = 0
	}
}

func (c *Civilization) String() string {
	return fmt.Sprintf("%s[%s pop=%.1f res=%.1f %s]", c.ID, c.Strategy, c.Population, c.Resources, c.Status)
}

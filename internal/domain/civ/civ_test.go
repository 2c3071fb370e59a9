package civ

import "testing"

func TestNewClampsNegatives(t *testing.T) {
	c := New("CIV_001", StrategyDiplomatic, -10, -5, Position{X: 1, Y: 2})

	if c.Population != 0 {
		t.Errorf("Expected population clamped to 0, got %f", c.Population)
	}
	if c.Resources != 0 {
		t.Errorf("Expected resources clamped to 0, got %f", c.Resources)
	}
	if c.Alive() {
		t.Errorf("Civilization born with zero population should be extinct")
	}
}

func TestExtinctionIsTerminal(t *testing.T) {
	c := New("CIV_002", StrategyAggressive, 50, 20, Position{})

	if extinct := c.AdjustPopulation(-50); !extinct {
		t.Fatalf("Expected extinction when population reaches zero")
	}
	if c.Alive() {
		t.Errorf("Expected extinct status, got %s", c.Status)
	}

	// A later positive delta must not revive the civilization.
	c.AdjustPopulation(10)
	if c.Status != StatusExtinct {
		t.Errorf("Extinction must be terminal, got %s", c.Status)
	}
	if c.Population != 0 {
		t.Errorf("Extinct civilization must keep zero population, got %f", c.Population)
	}
}

func TestAdjustResourcesClamps(t *testing.T) {
	c := New("CIV_003", StrategyDiplomatic, 100, 10, Position{})
	c.AdjustResources(-25)
	if c.Resources != 0 {
		t.Errorf("Expected resources clamped at 0, got %f", c.Resources)
	}
	c.AdjustResources(7.5)
	if c.Resources != 7.5 {
		t.Errorf("Expected resources 7.5, got %f", c.Resources)
	}
}

func TestStrategyValid(t *testing.T) {
	if !StrategyDiplomatic.Valid() || !StrategyAggressive.Valid() {
		t.Errorf("Known strategies should be valid")
	}
	if Strategy("pacifist").Valid() {
		t.Errorf("Unknown strategy should not be valid")
	}
}

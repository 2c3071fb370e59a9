package engine

import (
	"errors"
	"testing"

	"github.com/civforge/civsim/internal/domain/civ"
)

func validConfig() WorldConfig {
	return WorldConfig{
		Count:           10,
		StrategyRatio:   0.5,
		Extent:          Extent{Width: 100, Height: 100},
		StartPopulation: 100,
		StartResources:  50,
		NeighborRadius:  30,
		Seed:            42,
	}
}

func TestNewWorldRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*WorldConfig)
	}{
		{"zero count", func(c *WorldConfig) { c.Count = 0 }},
		{"negative count", func(c *WorldConfig) { c.Count = -3 }},
		{"ratio above one", func(c *WorldConfig) { c.StrategyRatio = 1.5 }},
		{"negative ratio", func(c *WorldConfig) { c.StrategyRatio = -0.1 }},
		{"degenerate extent", func(c *WorldConfig) { c.Extent.Width = 0 }},
		{"zero start population", func(c *WorldConfig) { c.StartPopulation = 0 }},
		{"negative resources", func(c *WorldConfig) { c.StartResources = -1 }},
		{"zero radius", func(c *WorldConfig) { c.NeighborRadius = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)

			_, err := NewWorld(cfg)
			if err == nil {
				t.Fatalf("Expected configuration error")
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Expected ConfigurationError, got %T: %v", err, err)
			}
		})
	}
}

func TestNewWorldStrategyMix(t *testing.T) {
	w, err := NewWorld(validConfig())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}

	aggressive, diplomatic := 0, 0
	for _, id := range w.AliveIDs() {
		c, _ := w.Civ(id)
		switch c.Strategy {
		case civ.StrategyAggressive:
			aggressive++
		case civ.StrategyDiplomatic:
			diplomatic++
		}
	}

	if aggressive != 5 || diplomatic != 5 {
		t.Errorf("Expected 5/5 strategy mix, got %d aggressive / %d diplomatic", aggressive, diplomatic)
	}
}

func TestNewWorldReproducible(t *testing.T) {
	w1, err := NewWorld(validConfig())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	w2, err := NewWorld(validConfig())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}

	for _, id := range w1.AliveIDs() {
		c1, _ := w1.Civ(id)
		c2, ok := w2.Civ(id)
		if !ok {
			t.Fatalf("Civilization %s missing from second world", id)
		}
		if c1.Strategy != c2.Strategy {
			t.Errorf("%s: strategy mismatch %s vs %s", id, c1.Strategy, c2.Strategy)
		}
		if c1.Position != c2.Position {
			t.Errorf("%s: position mismatch %+v vs %+v", id, c1.Position, c2.Position)
		}
	}
}

func TestNeighborsExcludesSelfAndExtinct(t *testing.T) {
	cfg := validConfig()
	cfg.NeighborRadius = 200 // everyone sees everyone in a 100x100 extent
	w, err := NewWorld(cfg)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}

	ids := w.AliveIDs()
	neighbors, err := w.Neighbors(ids[0], cfg.NeighborRadius)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(neighbors) != len(ids)-1 {
		t.Errorf("Expected %d neighbors, got %d", len(ids)-1, len(neighbors))
	}
	for _, n := range neighbors {
		if n == ids[0] {
			t.Errorf("Neighbors must exclude the queried civilization")
		}
	}

	// Extinct civilizations drop out of every later query.
	w.MarkExtinct(ids[1])
	neighbors, err = w.Neighbors(ids[0], cfg.NeighborRadius)
	if err != nil {
		t.Fatalf("Neighbors after extinction: %v", err)
	}
	for _, n := range neighbors {
		if n == ids[1] {
			t.Errorf("Extinct civilization %s still returned as neighbor", ids[1])
		}
	}

	// Querying for an extinct civilization is a caller bug.
	_, err = w.Neighbors(ids[1], cfg.NeighborRadius)
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Errorf("Expected InvalidStateError for extinct query, got %v", err)
	}
}

func TestGridIndexWithin(t *testing.T) {
	g := newGridIndex(10)
	g.insert("A", civ.Position{X: 0, Y: 0})
	g.insert("B", civ.Position{X: 5, Y: 0})
	g.insert("C", civ.Position{X: 50, Y: 50})

	got := g.within("A", civ.Position{X: 0, Y: 0}, 10)
	if len(got) != 1 || got[0] != "B" {
		t.Errorf("Expected [B], got %v", got)
	}

	g.remove("B")
	if got := g.within("A", civ.Position{X: 0, Y: 0}, 10); len(got) != 0 {
		t.Errorf("Expected no neighbors after removal, got %v", got)
	}
}

func TestSnapshotOmitsExtinct(t *testing.T) {
	w, err := NewWorld(validConfig())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}

	ids := w.AliveIDs()
	w.MarkExtinct(ids[3])

	snap := w.Snapshot("run-test")
	if len(snap.Civs) != len(ids)-1 {
		t.Fatalf("Expected %d snapshot entries, got %d", len(ids)-1, len(snap.Civs))
	}
	for _, cs := range snap.Civs {
		if cs.ID == ids[3] {
			t.Errorf("Extinct civilization %s appeared in snapshot", ids[3])
		}
	}
}

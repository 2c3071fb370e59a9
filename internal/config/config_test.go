package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/civforge/civsim/internal/engine"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "civsim.yaml")
	doc := `
world:
  count: 6
  strategy_ratio: 0.25
  seed: 99
scheduler:
  max_ticks: 50
dynamics:
  growth_rate: 0.05
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.World.Count != 6 || cfg.World.StrategyRatio != 0.25 || cfg.World.Seed != 99 {
		t.Errorf("world overrides not applied: %+v", cfg.World)
	}
	if cfg.Scheduler.MaxTicks != 50 {
		t.Errorf("scheduler override not applied: %+v", cfg.Scheduler)
	}
	if cfg.Dynamics.GrowthRate != 0.05 {
		t.Errorf("dynamics override not applied: %+v", cfg.Dynamics)
	}
	// Untouched sections keep their defaults.
	if cfg.World.Extent.Width != 30 || cfg.Scheduler.MaxPartners != 3 {
		t.Errorf("defaults lost on partial file: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "civsim.yaml")
	doc := `
world:
  count: 0
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsNegativeDynamics(t *testing.T) {
	cfg := Default()
	cfg.Dynamics.GrowthRate = -1
	var cfgErr *engine.ConfigurationError
	if err := cfg.Validate(); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

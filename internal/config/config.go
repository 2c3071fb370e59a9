// Package config loads and validates the simulator's tuning file.
// The file is YAML; anything omitted falls back to defaults, and all values
// are re-validated at world initialization.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/civforge/civsim/internal/engine"
)

// DynamicsConfig tunes the background population dynamics.
type DynamicsConfig struct {
	GrowthRate      float64 `yaml:"growth_rate" json:"growth_rate"`
	ExtinctionFloor float64 `yaml:"extinction_floor" json:"extinction_floor"`
}

// OutputConfig names where the recorders write.
type OutputConfig struct {
	Dir      string `yaml:"dir" json:"dir"`           // run summaries and time series
	Database string `yaml:"database" json:"database"` // SQLite snapshot/event store
	Archive  string `yaml:"archive" json:"archive"`   // compressed snapshot archives
}

// ServeConfig tunes the live-viewing server.
type ServeConfig struct {
	Addr   string `yaml:"addr" json:"addr"`
	PaceMs int    `yaml:"pace_ms" json:"pace_ms"` // delay between ticks for viewers
}

// Config is the complete configuration surface.
type Config struct {
	World     engine.WorldConfig     `yaml:"world" json:"world"`
	Scheduler engine.SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Tunables  engine.Tunables        `yaml:"tunables" json:"tunables"`
	Dynamics  DynamicsConfig         `yaml:"dynamics" json:"dynamics"`
	Output    OutputConfig           `yaml:"output" json:"output"`
	Serve     ServeConfig            `yaml:"serve" json:"serve"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		World: engine.WorldConfig{
			Count:           15,
			StrategyRatio:   0.5,
			Extent:          engine.Extent{Width: 30, Height: 30},
			StartPopulation: 100,
			StartResources:  50,
			NeighborRadius:  10,
			Seed:            42,
		},
		Scheduler: engine.SchedulerConfig{
			MaxTicks:    200,
			MaxPartners: 3,
		},
		Tunables: engine.DefaultTunables(),
		Dynamics: DynamicsConfig{
			GrowthRate:      0.01,
			ExtinctionFloor: engine.DefaultExtinctionFloor,
		},
		Output: OutputConfig{
			Dir:      "output",
			Database: "output/civsim.db",
			Archive:  "output/logs",
		},
		Serve: ServeConfig{
			Addr:   ":8080",
			PaceMs: 250,
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate delegates to the engine's validators so a bad file fails before
// any world is created.
func (c Config) Validate() error {
	if err := c.World.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if c.Dynamics.GrowthRate < 0 {
		return &engine.ConfigurationError{Field: "dynamics.growth_rate", Reason: fmt.Sprintf("must be non-negative, got %g", c.Dynamics.GrowthRate)}
	}
	if c.Dynamics.ExtinctionFloor < 0 {
		return &engine.ConfigurationError{Field: "dynamics.extinction_floor", Reason: fmt.Sprintf("must be non-negative, got %g", c.Dynamics.ExtinctionFloor)}
	}
	return nil
}

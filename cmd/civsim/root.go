package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/civforge/civsim/internal/config"
	"github.com/civforge/civsim/internal/platform/logger"
)

var (
	cfgPath  string
	logLevel string
	quiet    bool
	seedFlag int64
)

var rootCmd = &cobra.Command{
	Use:   "civsim",
	Short: "Agent-based simulator of competing civilization strategies",
	Long: `civsim runs a tick-based simulation of civilizations following fixed
strategies (diplomatic or aggressive), resolving their pairwise encounters
stochastically and recording the population history of every run.`,
	SilenceUsage: true,
}

// Execute wires the commands and runs the one selected.
func Execute() {
	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config (defaults apply when omitted)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log verbosity (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress per-tick logging")
	rootCmd.PersistentFlags().Int64Var(&seedFlag, "seed", 0, "override the world seed (0 keeps the configured one)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig resolves the effective configuration: file over defaults,
// environment over file, flags over everything.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if db := os.Getenv("CIVSIM_DB_PATH"); db != "" {
		cfg.Output.Database = db
	}
	if addr := os.Getenv("CIVSIM_ADDR"); addr != "" {
		cfg.Serve.Addr = addr
	}
	if seedFlag != 0 {
		cfg.World.Seed = seedFlag
	}
	return cfg, cfg.Validate()
}

func newAppLogger() *logger.Logger {
	if quiet {
		return logger.NewSilentLogger()
	}
	log := logger.NewLogger()
	log.SetLevel(logLevel)
	return log
}

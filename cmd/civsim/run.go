package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/civforge/civsim/internal/analysis"
	"github.com/civforge/civsim/internal/config"
	"github.com/civforge/civsim/internal/domain/civ"
	"github.com/civforge/civsim/internal/engine"
	"github.com/civforge/civsim/internal/events"
	"github.com/civforge/civsim/internal/infra/storage"
	"github.com/civforge/civsim/internal/platform/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single simulation and persist its history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appLog := newAppLogger()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		db, err := storage.InitSQLite(cfg.Output.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		eventLog := events.NewLog(storage.NewSQLiteEventRepository(db))
		eventLog.SetLogger(appLog)
		result, series, err := executeRun(ctx, cfg, appLog, db, eventLog, nil)
		if err != nil {
			return err
		}

		if err := writeSeries(cfg.Output.Dir, series); err != nil {
			return err
		}
		printSummary(cmd, result, series)
		return nil
	},
}

// executeRun builds one complete simulation from a configuration and runs it
// to the end. The optional extra recorder receives every snapshot alongside
// the durable ones; serve mode uses it for the live feed.
func executeRun(ctx context.Context, cfg config.Config, appLog *logger.Logger, db *sql.DB, eventLog *events.Log, extra engine.Recorder) (engine.RunResult, analysis.TimeSeries, error) {
	world, err := engine.NewWorld(cfg.World)
	if err != nil {
		return engine.RunResult{}, analysis.TimeSeries{}, err
	}

	resolver := engine.NewResolver(cfg.Tunables)
	dynamics := engine.NewDynamics(eventLog, appLog, cfg.Dynamics.GrowthRate)
	dynamics.SetExtinctionFloor(cfg.Dynamics.ExtinctionFloor)

	sqliteRec := storage.NewSQLiteRecorder(db)
	recorder := storage.NewMultiRecorder(sqliteRec)
	if extra != nil {
		recorder.Add(extra)
	}

	sched, err := engine.NewScheduler(cfg.Scheduler, world, resolver, dynamics, recorder, eventLog, appLog)
	if err != nil {
		return engine.RunResult{}, analysis.TimeSeries{}, err
	}

	archive, err := storage.NewArchiveRecorder(cfg.Output.Archive, sched.RunID())
	if err != nil {
		return engine.RunResult{}, analysis.TimeSeries{}, err
	}
	defer archive.Close()
	recorder.Add(archive)

	if err := sqliteRec.StartRun(sched.RunID(), cfg.World.Seed, cfg.World.Count); err != nil {
		return engine.RunResult{}, analysis.TimeSeries{}, err
	}

	result, err := sched.Run(ctx)
	if err != nil {
		return result, analysis.TimeSeries{}, err
	}
	if err := sqliteRec.FinishRun(result); err != nil {
		return result, analysis.TimeSeries{}, err
	}

	snaps, err := sqliteRec.SnapshotsByRun(result.RunID)
	if err != nil {
		return result, analysis.TimeSeries{}, err
	}
	return result, analysis.Aggregate(result.RunID, snaps), nil
}

// writeSeries stores the aggregated time series next to the raw history.
func writeSeries(dir string, series analysis.TimeSeries) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, series.RunID+"_series.json")
	raw, err := json.MarshalIndent(series, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize time series: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write time series: %w", err)
	}
	return nil
}

func printSummary(cmd *cobra.Command, result engine.RunResult, series analysis.TimeSeries) {
	cmd.Printf("run %s: %s (%s) after %d ticks\n", result.RunID, result.State, result.EndReason, result.Ticks)
	if len(series.Points) == 0 {
		return
	}
	last := series.Points[len(series.Points)-1]
	cmd.Printf("final: %d alive, total population %.1f, dominant strategy: %s\n",
		last.AliveCivs, last.TotalPopulation, last.Dominant)
	for _, strat := range []civ.Strategy{civ.StrategyDiplomatic, civ.StrategyAggressive} {
		stats := last.Strategies[strat]
		cmd.Printf("  %-10s pop %.1f (%.0f%%), %d alive\n",
			strat, stats.Population, stats.Fraction*100, stats.AliveCivs)
	}
}

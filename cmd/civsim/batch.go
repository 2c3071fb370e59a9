package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/civforge/civsim/internal/analysis"
	"github.com/civforge/civsim/internal/engine"
	"github.com/civforge/civsim/internal/events"
	"github.com/civforge/civsim/internal/infra/storage"
	"github.com/civforge/civsim/internal/platform/logger"
)

var batchRuns int

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run many simulations and tally how they end",
	Long: `batch executes N independent runs with consecutive seeds and prints the
distribution of end reasons and dominant strategies. Per-tick logging is
disabled; only the tally is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Per-tick output across hundreds of runs would drown the tally.
		appLog := logger.NewSilentLogger()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		db, err := storage.InitSQLite(cfg.Output.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		endReasons := map[engine.EndReason]int{}
		dominants := map[analysis.Dominance]int{}
		baseSeed := cfg.World.Seed
		started := time.Now()

		completed := 0
		for i := 0; i < batchRuns; i++ {
			if ctx.Err() != nil {
				break
			}
			runCfg := cfg
			runCfg.World.Seed = baseSeed + int64(i)

			eventLog := events.NewLog(storage.NewSQLiteEventRepository(db))
			result, series, err := executeRun(ctx, runCfg, appLog, db, eventLog, nil)
			if err != nil {
				cmd.PrintErrf("run %d (seed %d) failed: %v\n", i+1, runCfg.World.Seed, err)
				continue
			}
			endReasons[result.EndReason]++
			dominants[series.FinalDominant()]++
			completed++
		}

		elapsed := time.Since(started)
		cmd.Printf("%d/%d runs in %s (%.2fs per run)\n",
			completed, batchRuns, elapsed.Round(time.Millisecond), elapsed.Seconds()/float64(max(completed, 1)))

		cmd.Println("end reasons:")
		for _, reason := range []engine.EndReason{engine.EndDomination, engine.EndLastStanding, engine.EndStalemate} {
			if n := endReasons[reason]; n > 0 {
				cmd.Printf("  %-14s %3d (%.0f%%)\n", reason, n, 100*float64(n)/float64(completed))
			}
		}
		cmd.Println("dominant strategies:")
		for _, d := range []analysis.Dominance{analysis.DominantDiplomatic, analysis.DominantAggressive, analysis.DominantTied, analysis.DominantNone} {
			if n := dominants[d]; n > 0 {
				cmd.Printf("  %-14s %3d (%.0f%%)\n", d, n, 100*float64(n)/float64(completed))
			}
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchRuns, "runs", "n", 100, "number of simulations to execute")
}

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/civforge/civsim/internal/events"
	"github.com/civforge/civsim/internal/infra/cache"
	"github.com/civforge/civsim/internal/infra/storage"
	"github.com/civforge/civsim/internal/network"
	"github.com/civforge/civsim/internal/platform/metrics"
	"github.com/civforge/civsim/internal/platform/optimization"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a paced simulation with a live WebSocket feed",
	Long: `serve runs one simulation throttled for human viewing and exposes it
over HTTP: snapshots and events stream to /ws, metrics are served on
/metrics (JSON) and /metrics/prometheus.`,
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

		opt := optimization.DefaultConfig()
		db.SetMaxOpenConns(opt.DBMaxOpenConns)
		db.SetMaxIdleConns(opt.DBMaxIdleConns)

		eventLog := events.NewLog(storage.NewSQLiteEventRepository(db))
		eventLog.SetLogger(appLog)

		appLog.Info("Bootstrapping WebSocket Hub...")
		state := cache.NewStateCache()
		hub := network.NewHub(appLog)
		hub.SetStateCache(state)
		go hub.Run(ctx)
		hub.StartEventPoller(ctx, eventLog)
		broadcaster := network.NewSnapshotBroadcaster(hub).WithStateCache(state)

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.ServeWS)
		mux.HandleFunc("/metrics", metrics.Handler())
		mux.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())
		mux.HandleFunc("/api/optimization/recommendations", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(optimization.Analyze(metrics.Get().Snapshot()))
		})
		network.NewHistoryHandler(eventLog, appLog).RegisterRoutes(mux)

		server := &http.Server{Addr: cfg.Serve.Addr, Handler: mux}
		go func() {
			appLog.Infof("HTTP API & WS server listening on %s", cfg.Serve.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLog.Errorf("server failed: %v", err)
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = server.Shutdown(shutdownCtx)
		}()

		// Throttle the loop so viewers can follow it.
		cfg.Scheduler.Pace = time.Duration(cfg.Serve.PaceMs) * time.Millisecond

		result, series, err := executeRun(ctx, cfg, appLog, db, eventLog, broadcaster)
		if err != nil {
			return err
		}
		broadcaster.AnnounceRunEnd(result)

		if err := writeSeries(cfg.Output.Dir, series); err != nil {
			return err
		}
		printSummary(cmd, result, series)

		// Keep serving until interrupted so viewers can inspect the ending.
		appLog.Info("Run finished. Press Ctrl+C to exit.")
		<-ctx.Done()
		return nil
	},
}

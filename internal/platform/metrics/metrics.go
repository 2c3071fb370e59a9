// Package metrics provides observability for long or served simulation runs.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers runtime performance metrics.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Snapshot metrics
	SnapshotsWritten    int64
	SnapshotWriteLatSum int64
	SnapshotWriteLatMax int64
	SnapshotWriteErrors int64

	// Interaction metrics
	PairsResolved int64
	Extinctions   int64

	// Run metrics
	RunsCompleted    int64
	RunsStoppedEarly int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordSnapshotWrite records a snapshot hand-off to the recorder.
func (c *Collector) RecordSnapshotWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.SnapshotsWritten, 1)
	atomic.AddInt64(&c.SnapshotWriteLatSum, int64(latency))

	if int64(latency) > atomic.LoadInt64(&c.SnapshotWriteLatMax) {
		atomic.StoreInt64(&c.SnapshotWriteLatMax, int64(latency))
	}

	if err != nil {
		atomic.AddInt64(&c.SnapshotWriteErrors, 1)
	}
}

// RecordPairsResolved records resolved interaction pairs for a tick.
func (c *Collector) RecordPairsResolved(n int) {
	atomic.AddInt64(&c.PairsResolved, int64(n))
}

// RecordExtinction records a civilization leaving the simulation.
func (c *Collector) RecordExtinction() {
	atomic.AddInt64(&c.Extinctions, 1)
}

// RecordRunEnd records how a run terminated.
func (c *Collector) RecordRunEnd(stoppedEarly bool) {
	if stoppedEarly {
		atomic.AddInt64(&c.RunsStoppedEarly, 1)
	} else {
		atomic.AddInt64(&c.RunsCompleted, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records an outbound WebSocket message.
func (c *Collector) RecordWSMessage() {
	atomic.AddInt64(&c.WSMessagesOut, 1)
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	snapsWritten := atomic.LoadInt64(&c.SnapshotsWritten)

	var tickAvg, snapAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}
	if snapsWritten > 0 {
		snapAvg = float64(atomic.LoadInt64(&c.SnapshotWriteLatSum)) / float64(snapsWritten) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"snapshots": map[string]interface{}{
			"written":          snapsWritten,
			"avg_write_lat_ms": snapAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.SnapshotWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.SnapshotWriteErrors),
		},

		"simulation": map[string]interface{}{
			"pairs_resolved":     atomic.LoadInt64(&c.PairsResolved),
			"extinctions":        atomic.LoadInt64(&c.Extinctions),
			"runs_completed":     atomic.LoadInt64(&c.RunsCompleted),
			"runs_stopped_early": atomic.LoadInt64(&c.RunsStoppedEarly),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP civsim_tick_count Total tick cycles\n")
		fmt.Fprintf(w, "# TYPE civsim_tick_count counter\n")
		fmt.Fprintf(w, "civsim_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP civsim_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE civsim_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "civsim_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP civsim_snapshots_written Total snapshots handed to the recorder\n")
		fmt.Fprintf(w, "# TYPE civsim_snapshots_written counter\n")
		fmt.Fprintf(w, "civsim_snapshots_written %d\n\n", atomic.LoadInt64(&c.SnapshotsWritten))

		fmt.Fprintf(w, "# HELP civsim_snapshot_write_errors Total snapshot write errors\n")
		fmt.Fprintf(w, "# TYPE civsim_snapshot_write_errors counter\n")
		fmt.Fprintf(w, "civsim_snapshot_write_errors %d\n\n", atomic.LoadInt64(&c.SnapshotWriteErrors))

		fmt.Fprintf(w, "# HELP civsim_pairs_resolved Total interaction pairs resolved\n")
		fmt.Fprintf(w, "# TYPE civsim_pairs_resolved counter\n")
		fmt.Fprintf(w, "civsim_pairs_resolved %d\n\n", atomic.LoadInt64(&c.PairsResolved))

		fmt.Fprintf(w, "# HELP civsim_extinctions Total civilization extinctions\n")
		fmt.Fprintf(w, "# TYPE civsim_extinctions counter\n")
		fmt.Fprintf(w, "civsim_extinctions %d\n\n", atomic.LoadInt64(&c.Extinctions))

		fmt.Fprintf(w, "# HELP civsim_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE civsim_ws_connections gauge\n")
		fmt.Fprintf(w, "civsim_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP civsim_ws_messages_total Total outbound WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE civsim_ws_messages_total counter\n")
		fmt.Fprintf(w, "civsim_ws_messages_total %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}

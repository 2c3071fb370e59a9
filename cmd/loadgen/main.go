// Package main - loadgen
// Load generator for the live feed: connects many concurrent viewers to a
// running `civsim serve` and measures whether the hub keeps up.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config for the load generator.
type Config struct {
	ServerURL    string
	NumViewers   int
	TestDuration time.Duration
}

// Stats tracks feed delivery across all viewers.
type Stats struct {
	Connected        int64
	MessagesReceived int64
	Snapshots        int64
	Events           int64
	Errors           int64
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket feed URL")
	numViewers := flag.Int("viewers", 50, "Number of concurrent viewers")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	flag.Parse()

	config := Config{
		ServerURL:    *serverURL,
		NumViewers:   *numViewers,
		TestDuration: *duration,
	}

	fmt.Println("=========================================")
	fmt.Println("civsim loadgen - live feed stress test")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.ServerURL)
	fmt.Printf("Viewers:  %d\n", config.NumViewers)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	stats := runViewers(ctx, config)
	printResults(stats, config)
}

func runViewers(ctx context.Context, config Config) *Stats {
	stats := &Stats{}
	var wg sync.WaitGroup

	fmt.Println("\nStarting viewers...")

	for i := 0; i < config.NumViewers; i++ {
		wg.Add(1)
		go func(viewerID int) {
			defer wg.Done()
			runViewer(ctx, viewerID, config, stats)
		}(i)

		// Stagger connects to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("All %d viewers started\n\n", config.NumViewers)

	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-progress.C:
				recv := atomic.LoadInt64(&stats.MessagesReceived)
				errs := atomic.LoadInt64(&stats.Errors)
				conns := atomic.LoadInt64(&stats.Connected)
				fmt.Printf("progress: connected=%d received=%d errors=%d\n", conns, recv, errs)
			}
		}
	}()

	wg.Wait()
	return stats
}

func runViewer(ctx context.Context, viewerID int, config Config, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("viewer %d: connection failed: %v", viewerID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()
	atomic.AddInt64(&stats.Connected, 1)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddInt64(&stats.Errors, 1)
			}
			return
		}
		atomic.AddInt64(&stats.MessagesReceived, 1)

		var envelope struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		switch envelope.Kind {
		case "snapshot":
			atomic.AddInt64(&stats.Snapshots, 1)
		case "event":
			atomic.AddInt64(&stats.Events, 1)
		}
	}
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("RESULTS")
	fmt.Println("=========================================")

	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)
	conns := atomic.LoadInt64(&stats.Connected)

	fmt.Printf("Viewers connected:  %d/%d\n", conns, config.NumViewers)
	fmt.Printf("Messages received:  %d\n", recv)
	fmt.Printf("  snapshots:        %d\n", atomic.LoadInt64(&stats.Snapshots))
	fmt.Printf("  events:           %d\n", atomic.LoadInt64(&stats.Events))
	fmt.Printf("Errors:             %d\n", errs)
	fmt.Printf("Throughput:         %.2f msg/sec\n", float64(recv)/config.TestDuration.Seconds())

	fmt.Println("-----------------------------------------")
	switch {
	case errs == 0 && conns == int64(config.NumViewers):
		fmt.Println("PASSED: every viewer held its connection")
	case float64(errs)/float64(recv+1) < 0.05:
		fmt.Println("WARNING: some viewers dropped")
	default:
		fmt.Println("FAILED: high error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"viewers_connected": conns,
		"messages_received": recv,
		"errors":            errs,
		"config": map[string]interface{}{
			"viewers":  config.NumViewers,
			"duration": config.TestDuration.String(),
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	os.WriteFile("loadgen_results.json", jsonData, 0644)
	fmt.Println("\nResults saved to loadgen_results.json")
}

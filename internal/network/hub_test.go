package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/civforge/civsim/internal/domain/civ"
	"github.com/civforge/civsim/internal/engine"
	"github.com/civforge/civsim/internal/events"
	"github.com/civforge/civsim/internal/platform/logger"
)

func startHub(t *testing.T) (*Hub, *websocket.Conn, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.NewSilentLogger())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return hub, conn, cancel
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// The write pump batches queued messages into one frame; take the first.
	line := strings.SplitN(string(raw), "\n", 2)[0]
	var env Envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func TestBroadcastReachesViewer(t *testing.T) {
	hub, conn, cancel := startHub(t)
	defer cancel()

	snap := engine.Snapshot{
		RunID: "run-1",
		Tick:  7,
		Civs:  []engine.CivState{{ID: "CIV_001", Strategy: civ.StrategyDiplomatic, Population: 50}},
	}
	// Give the register message time to land before broadcasting.
	time.Sleep(50 * time.Millisecond)
	NewSnapshotBroadcaster(hub).Record(snap)

	env := readEnvelope(t, conn)
	if env.Kind != MessageSnapshot {
		t.Fatalf("kind = %q", env.Kind)
	}
	data, _ := json.Marshal(env.Data)
	var got engine.Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got.Tick != 7 || len(got.Civs) != 1 || got.Civs[0].ID != "CIV_001" {
		t.Errorf("snapshot mangled: %+v", got)
	}
}

func TestEventPollerPushesNewEvents(t *testing.T) {
	hub, conn, cancel := startHub(t)
	defer cancel()

	log := events.NewLog(nil)
	ctx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	hub.StartEventPoller(ctx, log)

	time.Sleep(50 * time.Millisecond)
	log.Append(events.Event{
		ID:      events.GenerateEventID(),
		RunID:   "run-1",
		Type:    events.TypeConflict,
		ActorID: "CIV_002",
		Tick:    3,
	})

	env := readEnvelope(t, conn)
	if env.Kind != MessageEvent {
		t.Fatalf("kind = %q", env.Kind)
	}
	data, _ := json.Marshal(env.Data)
	var got events.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if got.Type != events.TypeConflict || got.ActorID != "CIV_002" {
		t.Errorf("event mangled: %+v", got)
	}
}

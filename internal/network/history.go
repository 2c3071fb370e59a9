// Package network - history.go
//
// Read-only REST access to the run's event history. Viewers use it to
// inspect how a run unfolded without replaying the WebSocket feed.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/civforge/civsim/internal/events"
	"github.com/civforge/civsim/internal/platform/logger"
)

// HistoryHandler provides the run-history API.
type HistoryHandler struct {
	eventLog *events.Log
	logger   *logger.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(el *events.Log, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		eventLog: el,
		logger:   log,
	}
}

// HistoryResponse is the API response for the event listing.
type HistoryResponse struct {
	TotalEvents int            `json:"total_events"`
	FilteredBy  string         `json:"filtered_by,omitempty"`
	GeneratedAt string         `json:"generated_at"`
	Events      []events.Event `json:"events"`
}

// HandleEvents returns the event history, optionally filtered.
// GET /api/history/events?tick=N&type=CONQUEST&actor=CIV_003
func (hh *HistoryHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		hh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tickStr := r.URL.Query().Get("tick")
	eventType := r.URL.Query().Get("type")
	actorID := r.URL.Query().Get("actor")

	var filtered []events.Event
	filterDesc := ""

	for _, e := range hh.eventLog.Replay() {
		if tickStr != "" {
			tick, err := strconv.Atoi(tickStr)
			if err != nil {
				hh.jsonError(w, "Invalid tick", http.StatusBadRequest)
				return
			}
			if e.Tick != tick {
				continue
			}
			filterDesc = "tick " + tickStr
		}
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		if actorID != "" && e.ActorID != actorID {
			continue
		}
		filtered = append(filtered, e)
	}

	response := HistoryResponse{
		TotalEvents: len(filtered),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      filtered,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleEventDetail returns a single event by id.
// GET /api/history/event?event_id=XXX
func (hh *HistoryHandler) HandleEventDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		hh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventID := r.URL.Query().Get("event_id")
	if eventID == "" {
		hh.jsonError(w, "Missing event_id", http.StatusBadRequest)
		return
	}

	for _, e := range hh.eventLog.Replay() {
		if e.ID == eventID {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(e)
			return
		}
	}

	hh.jsonError(w, "Event not found", http.StatusNotFound)
}

// HandleStats returns aggregate event counts.
// GET /api/history/stats
func (hh *HistoryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		hh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := hh.eventLog.Replay()
	stats := map[string]int{
		"total_events": len(all),
		"alliances":    0,
		"conflicts":    0,
		"conquests":    0,
		"deterrences":  0,
		"extinctions":  0,
	}

	for _, e := range all {
		switch e.Type {
		case events.TypeAlliance:
			stats["alliances"]++
		case events.TypeConflict:
			stats["conflicts"]++
		case events.TypeConquest:
			stats["conquests"]++
		case events.TypeDeterrence:
			stats["deterrences"]++
		case events.TypeExtinction:
			stats["extinctions"]++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
	})
}

// RegisterRoutes sets up the history API routes.
func (hh *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/history/events", hh.HandleEvents)
	mux.HandleFunc("/api/history/event", hh.HandleEventDetail)
	mux.HandleFunc("/api/history/stats", hh.HandleStats)
}

// jsonError sends an error response.
func (hh *HistoryHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

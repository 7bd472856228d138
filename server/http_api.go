package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/railgraph/conflict-engine/simulation"
)

// POST /api/detect
//
// Body is an engineDoc {graph, lines}; if omitted, re-runs detection over
// the engine's current network. Either way it records the result as the
// engine's LastRun, broadcasts it over the hub, and returns it.
func serveDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.ContentLength > 0 {
		var doc engineDoc
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if doc.Graph != nil {
			engine.Graph = doc.Graph
		}
		if doc.Lines != nil {
			engine.Lines = doc.Lines
		}
		if err := engine.Initialize(); err != nil {
			http.Error(w, "failed to initialize engine: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	run := engine.Detect()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(run)
}

// GET /api/conflicts
func serveConflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if engine.LastRun == nil {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"conflicts": []interface{}{}, "stationCrossings": []interface{}{}})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"generatedAt":      engine.LastRun.GeneratedAt,
		"conflicts":        engine.LastRun.Conflicts,
		"stationCrossings": engine.LastRun.StationCrossings,
	})
}

// GET /api/departures?station=NAME
func serveDepartures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if engine.LastRun == nil {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"departures": []interface{}{}})
		return
	}
	station := r.URL.Query().Get("station")
	departures := engine.LastRun.Departures
	if station != "" {
		filtered := make([]simulation.Departure, 0, len(departures))
		for _, d := range departures {
			if d.Station == station {
				filtered = append(filtered, d)
			}
		}
		departures = filtered
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"departures": departures})
}

// GET /api/suggestions
func serveSuggestionsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if engine.Suggestions == nil {
		engine.RecomputeSuggestions()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(engine.Suggestions)
}

// POST /api/suggestions/{id}/accept
// POST /api/suggestions/{id}/reject
func serveSuggestionRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/suggestions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	id, action := parts[0], parts[1]

	switch action {
	case "accept":
		if err := engine.AcceptSuggestion(id); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	case "reject":
		minutes := 0
		if m := r.URL.Query().Get("minutes"); m != "" {
			if v, err := strconv.Atoi(m); err == nil {
				minutes = v
			}
		}
		engine.RejectSuggestion(id, minutes)
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

func installHTTPAPI() {
	http.HandleFunc("/api/detect", serveDetect)
	http.HandleFunc("/api/conflicts", serveConflicts)
	http.HandleFunc("/api/departures", serveDepartures)
	http.HandleFunc("/api/kpi", serveKPI)
	http.HandleFunc("/api/kpi/historical", serveKPIHistorical)
	http.HandleFunc("/api/suggestions", serveSuggestionsList)
	http.HandleFunc("/api/suggestions/", serveSuggestionRespond)
	http.HandleFunc("/api/audit", serveAuditLogs)
	http.HandleFunc("/api/audit/stream", serveAuditStream)
}

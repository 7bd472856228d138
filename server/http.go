// Copyright (C) 2008-2018 by Nicolas Piganeau and the TS2 TEAM
// (See AUTHORS file)
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program; if not, write to the
// Free Software Foundation, Inc.,
// 59 Temple Place - Suite 330, Boston, MA  02111-1307, USA.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/railgraph/conflict-engine/simulation"
	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	DefaultAddr       string = "0.0.0.0"
	DefaultPort       string = "8090"
	MaxHubStartupTime        = 3 * time.Second
)

var (
	engine *simulation.Engine
	hub    *Hub
	logger log.Logger

	// initialGraphSnapshot holds the JSON snapshot of the engine's graph and
	// lines as loaded, so the hub's engine "restart" action can rebuild a
	// fresh Engine from the original network instead of whatever it has
	// drifted to.
	initialGraphSnapshot []byte
)

// InitializeLogger creates the logger for the server module.
func InitializeLogger(parentLogger log.Logger) {
	logger = parentLogger.New("module", "server")
}

// engineDoc is the JSON shape initialGraphSnapshot is marshaled/restored
// from: the graph plus the lines running over it, everything Initialize
// needs to rebuild a fresh Engine.
type engineDoc struct {
	Graph *simulation.Graph `json:"graph"`
	Lines []*simulation.Line `json:"lines"`
}

// Run starts the HTTP API and websocket hub for the given engine, on the
// given address and port. It blocks until the process is told to exit.
func Run(e *simulation.Engine, addr, port string) {
	logger.Info("starting server")
	engine = e

	if b, err := json.Marshal(engineDoc{Graph: engine.Graph, Lines: engine.Lines}); err == nil {
		initialGraphSnapshot = b
	} else {
		logger.Error("unable to marshal initial engine snapshot", "error", err)
	}

	if ch := engine.Subscribe(); ch != nil {
		go func() {
			for ev := range ch {
				recordAuditFromEvent(ev)
				switch ev.Name {
				case simulation.DetectionCompletedEvent:
					if run, ok := ev.Object.(*simulation.DetectionRun); ok {
						updateMetrics(run)
					}
					if data, err := json.Marshal(ev.Object); err == nil {
						hub.Broadcast(NewPush(RawJSON(data)))
					}
				case simulation.SuggestionAcceptedEvent:
					recordSuggestionResponse(true)
				case simulation.SuggestionRejectedEvent:
					recordSuggestionResponse(false)
				}
			}
		}()
	}

	startMetricsTicker()

	hub = newHub()
	registerEngineHubObject()
	registerSuggestionsHubObject()

	hubUp := make(chan bool)
	timer := time.After(MaxHubStartupTime)
	go hub.run(hubUp)
	select {
	case <-hubUp:
		httpdStart(addr, port)
		os.Exit(1)
	case <-timer:
		log.Crit("hub did not start")
		os.Exit(1)
	}
}

// httpdStart registers every HTTP/websocket route and blocks serving them.
//
//   /ws           - websocket endpoint for engine control and suggestion
//                   commands, and for live detection-run broadcasts.
//   /api/...      - REST API described by installHTTPAPI.
func httpdStart(addr, port string) {
	http.HandleFunc("/", serveStatus)
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})
	installHTTPAPI()

	serverAddress := fmt.Sprintf("%s:%s", addr, port)
	logger.Info("starting HTTP", "address", serverAddress)
	err := http.ListenAndServe(serverAddress, nil)
	logger.Crit("HTTP crashed", "error", err)
}

// serveStatus reports the engine's display metadata and run state, the
// minimal equivalent of the teacher's rendered home page without a bundled
// static UI to serve it into.
func serveStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	data := struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Version     string `json:"version"`
		Started     bool   `json:"started"`
	}{
		engine.Options.Title,
		engine.Options.Description,
		engine.Options.Version,
		engine.IsStarted(),
	}
	json.NewEncoder(w).Encode(data)
}

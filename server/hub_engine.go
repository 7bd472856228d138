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

	"github.com/railgraph/conflict-engine/simulation"
)

// engineObject dispatches hub commands that control the Engine's lifecycle:
// starting/pausing its background re-detection ticker, restarting it from
// the initial network snapshot, and dumping its current state.
type engineObject struct{}

func (s *engineObject) dispatch(h *Hub, req Request, conn *connection) {
	ch := conn.pushChan
	logger.Debug("request for engine received", "object", req.Object, "action", req.Action)
	switch req.Action {
	case "start":
		engine.Start()
		ch <- NewOkResponse(req.ID, "engine started successfully")
	case "pause":
		engine.Pause()
		ch <- NewOkResponse(req.ID, "engine paused successfully")
	case "restart":
		if engine == nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("engine not initialized"))
			return
		}
		if initialGraphSnapshot == nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("initial snapshot unavailable"))
			return
		}

		if engine.IsStarted() {
			engine.Pause()
		}

		var doc engineDoc
		if err := json.Unmarshal(initialGraphSnapshot, &doc); err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("failed to rebuild engine: %s", err))
			return
		}

		fresh := simulation.NewEngine(doc.Graph, doc.Lines, engine.Options)
		if err := fresh.Initialize(); err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("failed to initialize engine: %s", err))
			return
		}
		engine = fresh
		engine.Detect()

		autoStart := false
		if req.Params != nil {
			var params map[string]interface{}
			if err := json.Unmarshal(req.Params, &params); err == nil {
				if value, exists := params["autoStart"]; exists {
					if boolVal, ok := value.(bool); ok {
						autoStart = boolVal
					} else if strVal, ok := value.(string); ok && strVal == "true" {
						autoStart = true
					}
				}
			}
		}

		if autoStart {
			engine.Start()
			ch <- NewOkResponse(req.ID, "engine restarted and started successfully")
		} else {
			ch <- NewOkResponse(req.ID, "engine restarted successfully")
		}
	case "isStarted":
		j, err := json.Marshal(engine.IsStarted())
		if err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("internal error: %s", err))
			return
		}
		ch <- NewResponse(req.ID, RawJSON(j))
	case "detect":
		run := engine.Detect()
		data, err := json.Marshal(run)
		if err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("internal error: %s", err))
			return
		}
		ch <- NewResponse(req.ID, data)
	case "dump":
		data, err := json.Marshal(engineDoc{Graph: engine.Graph, Lines: engine.Lines})
		if err != nil {
			ch <- NewErrorResponse(req.ID, fmt.Errorf("internal error: %s", err))
			return
		}
		ch <- NewResponse(req.ID, data)
	default:
		ch <- NewErrorResponse(req.ID, fmt.Errorf("unknown action %s/%s", req.Object, req.Action))
		logger.Debug("request for unknown action received", "object", req.Object, "action", req.Action)
	}
}

var _ hubObject = new(engineObject)

func registerEngineHubObject() {
	hub.objects["engine"] = new(engineObject)
}

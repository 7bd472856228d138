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

package main

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/railgraph/conflict-engine/server"
	"github.com/railgraph/conflict-engine/simulation"
	log "gopkg.in/inconshreveable/log15.v2"
)

// networkFile is the on-disk JSON shape the network flag loads: a graph and
// the lines running over it, the same document server.Run snapshots as
// initialGraphSnapshot for later restarts.
type networkFile struct {
	Graph *simulation.Graph  `json:"graph"`
	Lines []*simulation.Line `json:"lines"`

	Title                                string `json:"title"`
	Description                          string `json:"description"`
	Version                              string `json:"version"`
	StationMarginSeconds                 int    `json:"stationMarginSeconds"`
	MinimumSeparationSeconds             int    `json:"minimumSeparationSeconds"`
	IgnoreSameDirectionPlatformConflicts bool   `json:"ignoreSameDirectionPlatformConflicts"`
	SuggestionsEnabled                   bool   `json:"suggestionsEnabled"`
	SuggestionsIntervalMinutes           int    `json:"suggestionsIntervalMinutes"`
	SuggestMaxItems                      int    `json:"suggestMaxItems"`
	DetectionIntervalSeconds             int    `json:"detectionIntervalSeconds"`
}

func main() {
	networkPath := flag.String("network", "", "path to a JSON network description (graph + lines)")
	addr := flag.String("addr", server.DefaultAddr, "address to listen on")
	port := flag.String("port", server.DefaultPort, "port to listen on")
	autoStart := flag.Bool("start", false, "start the background re-detection ticker immediately")
	flag.Parse()

	logger := log.New("module", "main")
	logger.SetHandler(log.StdoutHandler)
	server.InitializeLogger(logger)

	var nf networkFile
	if *networkPath != "" {
		f, err := os.Open(*networkPath)
		if err != nil {
			logger.Crit("unable to open network file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&nf); err != nil {
			logger.Crit("unable to parse network file", "error", err)
			os.Exit(1)
		}
	}
	if nf.Graph == nil {
		nf.Graph = simulation.NewGraph()
	}

	options := simulation.Options{
		Title:                                nf.Title,
		Description:                          nf.Description,
		Version:                              nf.Version,
		StationMargin:                        time.Duration(nf.StationMarginSeconds) * time.Second,
		MinimumSeparation:                    time.Duration(nf.MinimumSeparationSeconds) * time.Second,
		IgnoreSameDirectionPlatformConflicts: nf.IgnoreSameDirectionPlatformConflicts,
		DaysMask:                             simulation.AllDays,
		SuggestionsEnabled:                   nf.SuggestionsEnabled,
		SuggestionsIntervalMinutes:           nf.SuggestionsIntervalMinutes,
		SuggestMaxItems:                      nf.SuggestMaxItems,
		DetectionIntervalSeconds:             nf.DetectionIntervalSeconds,
	}

	engine := simulation.NewEngine(nf.Graph, nf.Lines, options)
	if err := engine.Initialize(); err != nil {
		logger.Crit("failed to initialize engine", "error", err)
		os.Exit(1)
	}
	engine.Detect()

	if *autoStart {
		engine.Start()
	}

	server.Run(engine, *addr, *port)
}

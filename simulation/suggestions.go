// Copyright (C) 2008-2019 by Nicolas Piganeau and the TS2 TEAM
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

package simulation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SuggestionKind defines the category of a resolution suggestion.
type SuggestionKind string

const (
	SuggestionHoldAtPlatform SuggestionKind = "HOLD_AT_PLATFORM"
	SuggestionReassignTrack  SuggestionKind = "REASSIGN_TRACK"
	SuggestionAdjustDeparture SuggestionKind = "ADJUST_DEPARTURE"
)

// SuggestionAction describes an actionable command an operator may accept.
// The Object/Action pair maps onto a websocket hub object/action, the same
// shape a client uses to drive the engine directly.
type SuggestionAction struct {
	Object string                 `json:"object"`
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// Suggestion is a recommended fix for one conflict: a score, a human
// explanation, and the action(s) that would apply it.
type Suggestion struct {
	ID      string             `json:"id"`
	Kind    SuggestionKind     `json:"kind"`
	Title   string             `json:"title"`
	Reason  string             `json:"reason"`
	Score   float64            `json:"score"`
	Actions []SuggestionAction `json:"actions"`

	Journey1ID string     `json:"journey1_id"`
	Journey2ID string     `json:"journey2_id"`
	EdgeIndex  *EdgeIndex `json:"edge_index,omitempty"`
}

// Suggestions is a scored, ranked batch of Suggestion, as of GeneratedAt.
type Suggestions struct {
	Items       []Suggestion `json:"items"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// SuggestionEngine computes resolution suggestions from an Engine's most
// recent DetectionRun, on demand or on an interval gate, with per-suggestion
// rejection suppression.
type SuggestionEngine struct {
	engine         *Engine
	lastComputedAt time.Time
	rejectedUntil  map[string]time.Time
}

// NewSuggestionEngine creates a suggestion engine bound to engine.
func NewSuggestionEngine(engine *Engine) *SuggestionEngine {
	return &SuggestionEngine{
		engine:        engine,
		rejectedUntil: make(map[string]time.Time),
	}
}

// RejectUntil marks a suggestion as rejected until the given time.
func (se *SuggestionEngine) RejectUntil(id string, until time.Time) {
	se.rejectedUntil[id] = until
}

// RecomputeIfDue recomputes suggestions if the configured interval has
// elapsed since the last computation. Returns true if it recomputed.
func (se *SuggestionEngine) RecomputeIfDue() bool {
	if !se.engine.Options.SuggestionsEnabled {
		return false
	}
	interval := se.engine.Options.SuggestionsIntervalMinutes
	if interval <= 0 {
		interval = 3
	}
	now := time.Now()
	if !se.lastComputedAt.IsZero() && now.Sub(se.lastComputedAt) < time.Duration(interval)*time.Minute {
		return false
	}
	se.lastComputedAt = now
	se.Recompute()
	return true
}

// Recompute computes suggestions from the engine's last detection run,
// filters out currently-rejected ones, stores the result on the engine and
// broadcasts SuggestionsUpdatedEvent.
func (se *SuggestionEngine) Recompute() {
	s := se.computeSuggestions()

	now := time.Now()
	filtered := make([]Suggestion, 0, len(s.Items))
	for _, it := range s.Items {
		if until, ok := se.rejectedUntil[it.ID]; ok && now.Before(until) {
			continue
		}
		filtered = append(filtered, it)
	}
	s.Items = filtered

	se.engine.mu.Lock()
	se.engine.Suggestions = s
	se.engine.mu.Unlock()
	se.lastComputedAt = now

	se.engine.events.send(&Event{Name: SuggestionsUpdatedEvent, Object: *s})
}

// computeSuggestions turns each conflict of the engine's last run into at
// least one candidate fix, scores them, and returns the top
// Options.SuggestMaxItems ranked by score descending.
func (se *SuggestionEngine) computeSuggestions() *Suggestions {
	res := &Suggestions{GeneratedAt: time.Now()}

	se.engine.mu.RLock()
	run := se.engine.LastRun
	ctx := se.engine.ctx
	lines := se.engine.Lines
	se.engine.mu.RUnlock()

	if run == nil {
		return res
	}

	journeysByID := make(map[string]*TrainJourney, len(run.Journeys))
	for _, j := range run.Journeys {
		journeysByID[j.ID] = j
	}
	linesByID := make(map[string]*Line, len(lines))
	for _, l := range lines {
		linesByID[l.ID] = l
	}

	const buffer = 30 * time.Second
	var candidates []Suggestion

	for _, c := range run.Conflicts {
		j1 := journeysByID[c.Journey1ID]
		j2 := journeysByID[c.Journey2ID]

		requiredDelay := 5 * time.Minute
		if c.Segment2Times != nil {
			d := c.Segment2Times.End.Sub(c.Time) + buffer
			if d > 0 {
				requiredDelay = d
			}
		}
		delayMin := requiredDelay.Minutes()
		baseScore := 20.0 - delayMin
		if baseScore < 1.0 {
			baseScore = 1.0
		}

		switch c.Type {
		case PlatformViolation:
			platformIdx := 0
			if c.PlatformIdx != nil {
				platformIdx = *c.PlatformIdx
			}
			sID := fmt.Sprintf("%s:%s:%s:%d", SuggestionHoldAtPlatform, c.Journey1ID, c.Journey2ID, platformIdx)
			title := fmt.Sprintf("Hold %s at platform %d to clear %s", shortJourneyLabel(j2, c.Journey2ID), platformIdx, shortJourneyLabel(j1, c.Journey1ID))
			reason := fmt.Sprintf("Platform %d at station %d is occupied by both journeys from %s.", platformIdx, c.Station1Idx, c.Time.Format("15:04:05"))
			act := SuggestionAction{Object: "journey", Action: "holdAtPlatform", Params: map[string]interface{}{
				"journeyId": c.Journey2ID, "delaySeconds": int(requiredDelay.Seconds()),
			}}
			candidates = append(candidates, Suggestion{
				ID: sID, Kind: SuggestionHoldAtPlatform, Title: title, Reason: reason, Score: baseScore,
				Actions: []SuggestionAction{act}, Journey1ID: c.Journey1ID, Journey2ID: c.Journey2ID,
			})

		case BlockViolation, HeadOn, Overtaking:
			reassigned := false
			if c.EdgeIndex != nil && ctx != nil {
				if info, ok := ctx.EdgeInfoByIndex[*c.EdgeIndex]; ok && info.TrackCount > 1 {
					reassigned = true
					sID := fmt.Sprintf("%s:%s:%s:%d", SuggestionReassignTrack, c.Journey1ID, c.Journey2ID, *c.EdgeIndex)
					title := fmt.Sprintf("Reassign %s to an alternate track on edge %d", shortJourneyLabel(j2, c.Journey2ID), *c.EdgeIndex)
					reason := fmt.Sprintf("Edge %d carries %d tracks; moving one journey off the contended track clears the %s.", *c.EdgeIndex, info.TrackCount, strings.ToLower(c.Type.String()))
					act := SuggestionAction{Object: "journey", Action: "reassignTrack", Params: map[string]interface{}{
						"journeyId": c.Journey2ID, "edgeIndex": int(*c.EdgeIndex),
					}}
					candidates = append(candidates, Suggestion{
						ID: sID, Kind: SuggestionReassignTrack, Title: title, Reason: reason, Score: baseScore + 5.0,
						Actions: []SuggestionAction{act}, Journey1ID: c.Journey1ID, Journey2ID: c.Journey2ID, EdgeIndex: c.EdgeIndex,
					})
				}
			}

			if j2 != nil && linesByID[j2.LineID] != nil && linesByID[j2.LineID].ScheduleMode == Manual {
				sID := fmt.Sprintf("%s:%s:%s", SuggestionAdjustDeparture, c.Journey1ID, c.Journey2ID)
				title := fmt.Sprintf("Shift %s's departure by %.0f min", shortJourneyLabel(j2, c.Journey2ID), delayMin)
				reason := fmt.Sprintf("Journey is on a manually scheduled line; moving its departure %.0f minutes later avoids the %s entirely.", delayMin, strings.ToLower(c.Type.String()))
				act := SuggestionAction{Object: "journey", Action: "adjustDeparture", Params: map[string]interface{}{
					"journeyId": c.Journey2ID, "shiftSeconds": int(requiredDelay.Seconds()),
				}}
				candidates = append(candidates, Suggestion{
					ID: sID, Kind: SuggestionAdjustDeparture, Title: title, Reason: reason, Score: baseScore,
					Actions: []SuggestionAction{act}, Journey1ID: c.Journey1ID, Journey2ID: c.Journey2ID, EdgeIndex: c.EdgeIndex,
				})
			}

			if !reassigned {
				sID := fmt.Sprintf("%s:%s:%s", SuggestionHoldAtPlatform, c.Journey1ID, c.Journey2ID)
				title := fmt.Sprintf("Hold %s back by %.0f min", shortJourneyLabel(j2, c.Journey2ID), delayMin)
				reason := fmt.Sprintf("Delaying the later journey by %.0f minutes clears the %s at %s.", delayMin, strings.ToLower(c.Type.String()), c.Time.Format("15:04:05"))
				act := SuggestionAction{Object: "journey", Action: "holdAtPlatform", Params: map[string]interface{}{
					"journeyId": c.Journey2ID, "delaySeconds": int(requiredDelay.Seconds()),
				}}
				candidates = append(candidates, Suggestion{
					ID: sID, Kind: SuggestionHoldAtPlatform, Title: title, Reason: reason, Score: baseScore,
					Actions: []SuggestionAction{act}, Journey1ID: c.Journey1ID, Journey2ID: c.Journey2ID, EdgeIndex: c.EdgeIndex,
				})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	maxItems := se.engine.Options.SuggestMaxItems
	if maxItems <= 0 {
		maxItems = 50
	}
	if len(candidates) > maxItems {
		candidates = candidates[:maxItems]
	}
	res.Items = candidates
	return res
}

func shortJourneyLabel(j *TrainJourney, fallbackID string) string {
	if j == nil {
		return fallbackID
	}
	if j.TrainNumber != "" {
		return fmt.Sprintf("%s/%s", j.LineID, j.TrainNumber)
	}
	return fmt.Sprintf("%s@%s", j.LineID, j.DepartureTime.Format("15:04"))
}

// Accept records acceptance of the suggestion identified by id and removes
// it from the engine's active list. Only the first action's kind is
// checked; suggestions carry at most one in this domain. The schedule
// itself is not changed.
func (se *SuggestionEngine) Accept(id string) error {
	se.engine.mu.RLock()
	var found *Suggestion
	if se.engine.Suggestions != nil {
		for i := range se.engine.Suggestions.Items {
			if se.engine.Suggestions.Items[i].ID == id {
				found = &se.engine.Suggestions.Items[i]
				break
			}
		}
	}
	se.engine.mu.RUnlock()

	if found == nil {
		return fmt.Errorf("unknown suggestion: %s", id)
	}
	if len(found.Actions) == 0 {
		return fmt.Errorf("suggestion %s carries no action", id)
	}

	act := found.Actions[0]
	switch act.Action {
	case "holdAtPlatform", "reassignTrack", "adjustDeparture":
		// Applying the fix to a live schedule is a scheduling-system
		// concern outside this engine's scope (spec.md Non-goals exclude
		// interactive editing); accepting records operator intent and
		// removes the suggestion from the active list.
		se.engine.mu.Lock()
		if s := se.engine.Suggestions; s != nil {
			for i := range s.Items {
				if s.Items[i].ID == id {
					s.Items = append(s.Items[:i:i], s.Items[i+1:]...)
					break
				}
			}
		}
		se.engine.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("unsupported suggestion action: %s", act.Action)
	}
}

// Reject marks the suggestion as rejected for the given number of minutes
// (defaulting to 5 when minutes <= 0).
func (se *SuggestionEngine) Reject(id string, minutes int) {
	if minutes <= 0 {
		minutes = 5
	}
	se.RejectUntil(id, time.Now().Add(time.Duration(minutes)*time.Minute))
}

// MarshalJSON lets Suggestions serialize cleanly when carried as an event
// payload or HTTP response body.
func (s Suggestions) MarshalJSON() ([]byte, error) {
	type aux struct {
		Items       []Suggestion `json:"items"`
		GeneratedAt time.Time    `json:"generatedAt"`
	}
	return json.Marshal(aux{Items: s.Items, GeneratedAt: s.GeneratedAt})
}

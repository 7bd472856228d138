package simulation

import (
	"sort"
	"time"
)

// Departure is one scheduled arrival/departure at a station for a line,
// independent of the conflict detector — a read-side timetable convenience
// (SPEC_FULL.md component 9), not an input to DetectConflicts.
type Departure struct {
	LineID  string
	Station string
	Time    time.Time
}

// GenerateDepartures computes the departure board for every (line, station)
// pair where station appears somewhere in the line's route, within
// [windowStart, windowEnd]. Mirrors the Auto/Manual split of journey
// expansion but works from a station's per-line schedule offset rather
// than full journey construction. For Manual lines only each departure's
// FromStation and ToStation are listed.
func GenerateDepartures(lines []*Line, graph *Graph, stations []NodeIndex, windowStart, windowEnd time.Time) []Departure {
	var departures []Departure

	for _, line := range lines {
		for _, station := range stations {
			departures = append(departures, generateStationDepartures(line, graph, station, windowStart, windowEnd)...)
		}
	}

	sort.Slice(departures, func(i, j int) bool {
		if !departures[i].Time.Equal(departures[j].Time) {
			return departures[i].Time.Before(departures[j].Time)
		}
		if departures[i].LineID != departures[j].LineID {
			return departures[i].LineID < departures[j].LineID
		}
		return departures[i].Station < departures[j].Station
	})

	return departures
}

func generateStationDepartures(line *Line, graph *Graph, station NodeIndex, windowStart, windowEnd time.Time) []Departure {
	offset, ok := stationOffsetInRoute(line, graph, station)
	if !ok {
		return nil
	}

	stationName, _ := graph.StationName(station)
	var out []Departure

	switch line.ScheduleMode {
	case Auto:
		base := line.FirstDeparture
		dayBound := line.LastDeparture
		if dayBound.IsZero() || !dayBound.After(base) {
			dayBound = BaseDate.Add(time.Duration(GenerationEndHour) * time.Hour)
		}
		for !base.After(dayBound) {
			arrival := base.Add(offset)
			if !arrival.Before(windowStart) && !arrival.After(windowEnd) {
				out = append(out, Departure{LineID: line.ID, Station: stationName, Time: arrival})
			}
			if line.Frequency <= 0 {
				break
			}
			base = base.Add(line.Frequency)
		}
	case Manual:
		for _, dep := range line.ManualDepartures {
			if station != dep.FromStation && station != dep.ToStation {
				continue
			}
			arrival := dep.Time
			if station != dep.FromStation {
				fromOffset, _ := stationOffsetInRoute(line, graph, dep.FromStation)
				arrival = dep.Time.Add(offset - fromOffset)
			}
			if !arrival.Before(windowStart) && !arrival.After(windowEnd) {
				out = append(out, Departure{LineID: line.ID, Station: stationName, Time: arrival})
			}
		}
	}

	return out
}

// stationOffsetInRoute returns the cumulative duration+wait offset of
// station from the line's departure time, walking the forward route (and
// falling back to the return route if the station isn't on the forward
// one). ok is false if the station doesn't appear on either route.
func stationOffsetInRoute(line *Line, graph *Graph, station NodeIndex) (time.Duration, bool) {
	if offset, ok := offsetInRoute(line.ForwardRoute, line, graph, station); ok {
		return offset, true
	}
	return offsetInRoute(line.ReturnRoute, line, graph, station)
}

func offsetInRoute(route []RouteSegment, line *Line, graph *Graph, station NodeIndex) (time.Duration, bool) {
	if len(route) == 0 {
		return 0, false
	}
	first, _, ok := graph.GetTrackEndpoints(route[0].EdgeIndex)
	if !ok {
		return 0, false
	}
	if first == station {
		return 0, true
	}

	durations, _ := effectiveDurations(route, line)
	cumulative := time.Duration(0)
	for i, seg := range route {
		cumulative += durations[i]
		_, to, ok := graph.GetTrackEndpoints(seg.EdgeIndex)
		if !ok {
			continue
		}
		cumulative += seg.WaitTime
		if to == station {
			return cumulative, true
		}
	}
	return 0, false
}

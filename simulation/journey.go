package simulation

import (
	"fmt"
	"time"

	log "gopkg.in/inconshreveable/log15.v2"
)

var journeyLogger = log.New("pkg", "simulation.journey")

// MaxJourneysPerLinePerDay bounds the auto-generation loop per line per
// calendar day, guarding against a misconfigured frequency looping forever.
const MaxJourneysPerLinePerDay = 100

// GenerationWindowStart/End bound the window GenerateJourneys fills, per
// spec.md §6: "[base_midnight - 24h, base_midnight + 7*24h)".
var (
	GenerationWindowStart = BaseMidnight.Add(-24 * time.Hour)
	GenerationWindowEnd   = BaseMidnight.Add(7 * 24 * time.Hour)
)

// JourneySegment is the per-hop track/platform binding carried by a
// TrainJourney, mirroring the RouteSegment it was expanded from.
type JourneySegment struct {
	EdgeIndex           EdgeIndex
	TrackIndex          int
	OriginPlatform      int
	DestinationPlatform int
}

// StationStop is one entry of a TrainJourney's station_times: the node
// visited and its arrival/departure time.
type StationStop struct {
	Node      NodeIndex
	Arrival   time.Time
	Departure time.Time
}

// TrainJourney is a single scheduled run: per-station arrival/departure
// times and per-segment track/platform bindings, flattened from a Line for
// consumption by the conflict detector.
type TrainJourney struct {
	ID            string
	LineID        string
	TrainNumber   string
	IsForward     bool
	DepartureTime time.Time

	StationTimes []StationStop
	Segments     []JourneySegment

	// TimingInherited is parallel to StationTimes: true at index i iff the
	// arrival at StationTimes[i] was computed from an inherited duration
	// rather than one explicitly set on the route segment (spec.md §4.4).
	TimingInherited []bool

	Color     string
	Thickness float64

	RouteStartNode NodeIndex
	RouteEndNode   NodeIndex
}

// DistributeDuration splits total proportionally across len(distances)
// sub-segments, with the remainder absorbed by the last one to avoid
// truncation loss. Used when a higher layer (an importer) has split one
// logical line segment into several consecutive graph edges, e.g. around a
// passing loop (spec.md §9 Design Note).
func DistributeDuration(total time.Duration, distances []float64) []time.Duration {
	out := make([]time.Duration, len(distances))
	if len(distances) == 0 {
		return out
	}
	var sum float64
	for _, d := range distances {
		sum += d
	}
	if sum <= 0 {
		// No distance information: split evenly.
		share := total / time.Duration(len(distances))
		for i := range out {
			out[i] = share
		}
		out[len(out)-1] = total - share*time.Duration(len(out)-1)
		return out
	}

	var allocated time.Duration
	for i, d := range distances[:len(distances)-1] {
		share := time.Duration(float64(total) * d / sum)
		out[i] = share
		allocated += share
	}
	out[len(out)-1] = total - allocated
	return out
}

// effectiveDurations resolves every route segment's travel duration,
// applying the forward-then-backward nearest-neighbour inheritance rule of
// spec.md §4.4, falling back to the line's DefaultWaitTime when no
// explicit duration exists anywhere on the route.
func effectiveDurations(route []RouteSegment, line *Line) (durations []time.Duration, inherited []bool) {
	n := len(route)
	durations = make([]time.Duration, n)
	inherited = make([]bool, n)

	for i := range route {
		if route[i].Duration != nil {
			durations[i] = *route[i].Duration
			continue
		}
		inherited[i] = true

		found := false
		for j := i + 1; j < n; j++ {
			if route[j].Duration != nil {
				durations[i] = *route[j].Duration
				found = true
				break
			}
		}
		if !found {
			for j := i - 1; j >= 0; j-- {
				if route[j].Duration != nil {
					durations[i] = *route[j].Duration
					found = true
					break
				}
			}
		}
		if !found {
			durations[i] = line.DefaultWaitTime
		}
	}
	return durations, inherited
}

// syncReturnDurations mirrors forward-route durations onto the return
// route when Line.SyncRoutes is set: return segment i takes the duration of
// the forward segment on the same edge, preferring the one at the mirrored
// position (last forward segment pairs with the first return segment, and
// so on). A return segment whose edge the forward route never uses keeps
// its own duration. Wait times are never mirrored (spec.md §4.4).
func syncReturnDurations(forward, ret []RouteSegment) []RouteSegment {
	if len(forward) == 0 || len(ret) == 0 {
		return ret
	}
	out := make([]RouteSegment, len(ret))
	copy(out, ret)
	n := len(forward)
	for i := range out {
		mirrorIdx := n - 1 - i
		if mirrorIdx < 0 || forward[mirrorIdx].EdgeIndex != out[i].EdgeIndex {
			mirrorIdx = -1
			for j := n - 1; j >= 0; j-- {
				if forward[j].EdgeIndex == out[i].EdgeIndex {
					mirrorIdx = j
					break
				}
			}
		}
		if mirrorIdx < 0 || forward[mirrorIdx].Duration == nil {
			continue
		}
		d := *forward[mirrorIdx].Duration
		out[i].Duration = &d
	}
	return out
}

func weekdayBit(t time.Time) DaysOfWeek {
	// time.Weekday: Sunday=0..Saturday=6; DaysOfWeek bit 0 is Monday.
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

func timeOfDay(t time.Time) time.Duration {
	return t.Sub(BaseDate)
}

// buildJourneyFromRoute walks route starting at departureTime, accumulating
// duration+wait per segment, and returns the resulting TrainJourney. It
// returns ok=false if the route doesn't produce at least two stations
// (spec.md §4.4 "journeys whose first->last span is empty are discarded").
func buildJourneyFromRoute(route []RouteSegment, line *Line, graph *Graph, departureTime time.Time, firstStopWait time.Duration, isForward bool) (*TrainJourney, bool) {
	if len(route) == 0 {
		return nil, false
	}

	durations, inherited := effectiveDurations(route, line)

	var stops []StationStop
	var segments []JourneySegment
	var timingInherited []bool

	firstFrom, _, ok := graph.GetTrackEndpoints(route[0].EdgeIndex)
	if !ok {
		journeyLogger.Debug("dangling edge reference at route start, dropping journey", "line", line.ID, "edge", route[0].EdgeIndex)
		return nil, false
	}
	firstDeparture := departureTime.Add(firstStopWait)
	stops = append(stops, StationStop{Node: firstFrom, Arrival: departureTime, Departure: firstDeparture})
	timingInherited = append(timingInherited, false)

	cumulative := firstStopWait
	for i, seg := range route {
		cumulative += durations[i]
		arrival := departureTime.Add(cumulative)

		cumulative += seg.WaitTime
		departureFromStation := departureTime.Add(cumulative)

		_, to, ok := graph.GetTrackEndpoints(seg.EdgeIndex)
		if !ok {
			journeyLogger.Debug("dangling edge reference mid-route, skipping segment", "line", line.ID, "edge", seg.EdgeIndex)
			continue
		}

		stops = append(stops, StationStop{Node: to, Arrival: arrival, Departure: departureFromStation})
		timingInherited = append(timingInherited, inherited[i])
		segments = append(segments, JourneySegment{
			EdgeIndex:           seg.EdgeIndex,
			TrackIndex:          seg.TrackIndex,
			OriginPlatform:      seg.OriginPlatform,
			DestinationPlatform: seg.DestinationPlatform,
		})
	}

	if len(stops) < 2 {
		return nil, false
	}

	return &TrainJourney{
		LineID:          line.ID,
		IsForward:       isForward,
		DepartureTime:   firstDeparture,
		StationTimes:    stops,
		Segments:        segments,
		TimingInherited: timingInherited,
		Color:           line.Color,
		Thickness:       line.Thickness,
		RouteStartNode:  stops[0].Node,
		RouteEndNode:    stops[len(stops)-1].Node,
	}, true
}

// GenerateJourneys expands every line into concrete TrainJourney runs
// falling within [base_midnight-24h, base_midnight+7*24h). Auto-mode runs
// respect the line's days-of-week mask (0 meaning every day) intersected
// with mask (mask == 0 means "no override": only the line's own mask
// applies). Manual-mode runs respect each departure's own Days and mask.
// Never fails: lines with dangling edges or empty routes are skipped
// (spec.md §6).
func GenerateJourneys(lines []*Line, graph *Graph, mask DaysOfWeek) []*TrainJourney {
	var journeys []*TrainJourney

	for _, line := range lines {
		if len(line.ForwardRoute) == 0 && len(line.ReturnRoute) == 0 {
			continue
		}

		effectiveMask := line.Days
		if mask != 0 {
			if effectiveMask == 0 {
				effectiveMask = AllDays
			}
			effectiveMask &= mask
		}

		returnRoute := line.ReturnRoute
		if line.SyncRoutes {
			returnRoute = syncReturnDurations(line.ForwardRoute, line.ReturnRoute)
		}

		switch line.ScheduleMode {
		case Auto:
			if mask != 0 && effectiveMask == 0 {
				// The line's days and mask share no weekday.
				break
			}
			journeys = append(journeys, generateAutoJourneys(line, graph, line.ForwardRoute, line.FirstDeparture, effectiveMask, line.FirstStopWaitForward, true)...)
			if len(returnRoute) > 0 {
				journeys = append(journeys, generateAutoJourneys(line, graph, returnRoute, line.ReturnFirstDeparture, effectiveMask, line.FirstStopWaitReturn, false)...)
			}
		case Manual:
			journeys = append(journeys, generateManualJourneys(line, graph, returnRoute, mask)...)
		}
	}

	var n int
	for _, j := range journeys {
		if !j.DepartureTime.Before(GenerationWindowStart) && j.DepartureTime.Before(GenerationWindowEnd) {
			journeys[n] = j
			n++
		}
	}
	journeys = journeys[:n]

	for i, j := range journeys {
		j.ID = fmt.Sprintf("%s-%d-%d", j.LineID, j.DepartureTime.Unix(), i)
	}

	return journeys
}

func generateAutoJourneys(line *Line, graph *Graph, route []RouteSegment, firstDeparture time.Time, mask DaysOfWeek, firstStopWait time.Duration, isForward bool) []*TrainJourney {
	if len(route) == 0 || line.Frequency <= 0 {
		return nil
	}

	var out []*TrainJourney
	offsetOfDay := timeOfDay(firstDeparture)

	// last_departure bounds each day's window (spec.md §4.4: "enumerated
	// ... up to last_departure"). If it isn't after first_departure
	// (unset, or a same-instant value left at the zero time), fall back to
	// GenerationEndHour so a misconfigured line still terminates.
	lastOffset := timeOfDay(line.LastDeparture)
	if line.LastDeparture.IsZero() || lastOffset <= offsetOfDay {
		lastOffset = time.Duration(GenerationEndHour) * time.Hour
	}

	for dayOffset := -1; dayOffset <= 7; dayOffset++ {
		dayStart := BaseDate.AddDate(0, 0, dayOffset)
		departureTime := dayStart.Add(offsetOfDay)
		dayEnd := dayStart.Add(lastOffset)
		count := 0

		for !departureTime.After(dayEnd) && count < MaxJourneysPerLinePerDay {
			if mask == 0 || mask.Contains(weekdayBit(departureTime)) {
				if journey, ok := buildJourneyFromRoute(route, line, graph, departureTime, firstStopWait, isForward); ok {
					out = append(out, journey)
					count++
				}
			}

			departureTime = departureTime.Add(line.Frequency)
		}
	}

	return out
}

func generateManualJourneys(line *Line, graph *Graph, returnRoute []RouteSegment, mask DaysOfWeek) []*TrainJourney {
	var out []*TrainJourney

	for _, dep := range line.ManualDepartures {
		occurrences := manualOccurrences(dep)
		for _, occTime := range occurrences {
			if dep.Days != 0 && !dep.Days.Contains(weekdayBit(occTime)) {
				continue
			}
			if mask != 0 && !mask.Contains(weekdayBit(occTime)) {
				continue
			}
			if journey, ok := manualJourneyForRoute(line.ForwardRoute, line, graph, occTime, dep, true); ok {
				out = append(out, journey)
				continue
			}
			if journey, ok := manualJourneyForRoute(returnRoute, line, graph, occTime, dep, false); ok {
				out = append(out, journey)
			}
		}
	}

	return out
}

func manualOccurrences(dep ManualDeparture) []time.Time {
	if dep.RepeatEvery <= 0 {
		return []time.Time{dep.Time}
	}
	until := dep.RepeatUntil
	if until.IsZero() {
		until = GenerationWindowEnd
	}
	var times []time.Time
	for t := dep.Time; !t.After(until) && t.Before(GenerationWindowEnd); t = t.Add(dep.RepeatEvery) {
		times = append(times, t)
	}
	return times
}

// manualJourneyForRoute builds the sub-journey of route between
// dep.FromStation and dep.ToStation, departing at departureTime. It walks
// the route's station sequence to find the matching from/to positions,
// exactly as original_source/src/train_journey.rs does for manual
// departures.
func manualJourneyForRoute(route []RouteSegment, line *Line, graph *Graph, departureTime time.Time, dep ManualDeparture, isForward bool) (*TrainJourney, bool) {
	if len(route) == 0 {
		return nil, false
	}

	routeStations := make([]NodeIndex, 0, len(route)+1)
	first, _, ok := graph.GetTrackEndpoints(route[0].EdgeIndex)
	if !ok {
		return nil, false
	}
	routeStations = append(routeStations, first)
	for _, seg := range route {
		_, to, ok := graph.GetTrackEndpoints(seg.EdgeIndex)
		if !ok {
			return nil, false
		}
		routeStations = append(routeStations, to)
	}

	fromPos := indexOfNode(routeStations, dep.FromStation)
	toPos := indexOfNode(routeStations, dep.ToStation)
	if fromPos < 0 || toPos < 0 || fromPos >= toPos {
		return nil, false
	}

	subRoute := route[fromPos:toPos]
	durations, inherited := effectiveDurations(route, line)
	subDurations := durations[fromPos:toPos]
	subInherited := inherited[fromPos:toPos]

	stops := []StationStop{{Node: routeStations[fromPos], Arrival: departureTime, Departure: departureTime}}
	timingInherited := []bool{false}
	var segments []JourneySegment

	cumulative := time.Duration(0)
	for i, seg := range subRoute {
		cumulative += subDurations[i]
		arrival := departureTime.Add(cumulative)
		cumulative += seg.WaitTime
		departureFromStation := departureTime.Add(cumulative)

		stops = append(stops, StationStop{Node: routeStations[fromPos+i+1], Arrival: arrival, Departure: departureFromStation})
		timingInherited = append(timingInherited, subInherited[i])
		segments = append(segments, JourneySegment{
			EdgeIndex:           seg.EdgeIndex,
			TrackIndex:          seg.TrackIndex,
			OriginPlatform:      seg.OriginPlatform,
			DestinationPlatform: seg.DestinationPlatform,
		})
	}

	if len(stops) < 2 {
		return nil, false
	}

	return &TrainJourney{
		LineID:          line.ID,
		TrainNumber:     dep.TrainNumber,
		IsForward:       isForward,
		DepartureTime:   departureTime,
		StationTimes:    stops,
		Segments:        segments,
		TimingInherited: timingInherited,
		Color:           line.Color,
		Thickness:       line.Thickness,
		RouteStartNode:  stops[0].Node,
		RouteEndNode:    stops[len(stops)-1].Node,
	}, true
}

func indexOfNode(nodes []NodeIndex, target NodeIndex) int {
	for i, n := range nodes {
		if n == target {
			return i
		}
	}
	return -1
}

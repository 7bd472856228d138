package simulation

import "time"

// platformOccupancy is one stop's buffered platform occupancy window,
// extracted from a journey for the platform-conflict pass (spec.md §4.5
// step 1/3).
type platformOccupancy struct {
	StationIdx      int
	PlatformIdx     int
	TimeStart       time.Time
	TimeEnd         time.Time
	TimingUncertain bool
	ArrivalEdge     *EdgeIndex

	ActualArrival   time.Time
	ActualDeparture time.Time
}

// extractPlatformOccupancies builds the buffered platform occupancy list
// for journey: arrival/departure windows expanded by the context's
// minimum-separation buffer, except at the journey's first stop (no
// pre-buffer) and last stop (no post-buffer). Junctions are skipped, since
// they have no platforms (spec.md §4.2, §4.5).
func extractPlatformOccupancies(journey *TrainJourney, ctx *ConflictContext) []platformOccupancy {
	var occupancies []platformOccupancy
	buffer := time.Duration(ctx.MinimumSeparationSecs * float64(time.Second))

	for i, stop := range journey.StationTimes {
		stationIdx, ok := ctx.StationIndices[stop.Node]
		if !ok {
			continue
		}
		if ctx.IsJunction(stop.Node) {
			continue
		}

		var platformIdx int
		var arrivalEdge *EdgeIndex
		switch {
		case i > 0 && i-1 < len(journey.Segments):
			seg := journey.Segments[i-1]
			platformIdx = seg.DestinationPlatform
			edge := seg.EdgeIndex
			arrivalEdge = &edge
		case i < len(journey.Segments):
			platformIdx = journey.Segments[i].OriginPlatform
		default:
			platformIdx = 0
		}

		isFirst := i == 0
		isLast := i == len(journey.StationTimes)-1

		timeStart := stop.Arrival
		if !isFirst {
			timeStart = stop.Arrival.Add(-buffer)
		}
		timeEnd := stop.Departure
		if !isLast {
			timeEnd = stop.Departure.Add(buffer)
		}

		timingUncertain := false
		if i < len(journey.TimingInherited) {
			timingUncertain = journey.TimingInherited[i]
		}

		occupancies = append(occupancies, platformOccupancy{
			StationIdx:      stationIdx,
			PlatformIdx:     platformIdx,
			TimeStart:       timeStart,
			TimeEnd:         timeEnd,
			TimingUncertain: timingUncertain,
			ArrivalEdge:     arrivalEdge,
			ActualArrival:   stop.Arrival,
			ActualDeparture: stop.Departure,
		})
	}

	return occupancies
}

// checkPlatformConflictsCached does the O(|occ1|*|occ2|) nested scan,
// emitting a PlatformViolation whenever both journeys occupy the same
// (station, platform) with overlapping buffered windows (spec.md §4.5
// step 3).
func checkPlatformConflictsCached(journey1, journey2 *TrainJourney, results *detectionResults, occ1, occ2 []platformOccupancy, ctx *ConflictContext) {
	for _, o1 := range occ1 {
		for _, o2 := range occ2 {
			if o1.StationIdx != o2.StationIdx || o1.PlatformIdx != o2.PlatformIdx {
				continue
			}

			if !(o1.TimeStart.Before(o2.TimeEnd) && o2.TimeStart.Before(o1.TimeEnd)) {
				continue
			}

			conflictTime := o1.TimeStart
			if o2.TimeStart.After(conflictTime) {
				conflictTime = o2.TimeStart
			}
			if conflictTime.Before(BaseMidnight) {
				continue
			}

			sameDirection := o1.ArrivalEdge != nil && o2.ArrivalEdge != nil && *o1.ArrivalEdge == *o2.ArrivalEdge
			if ctx.IgnoreSameDirectionPlatformConflicts && sameDirection {
				continue
			}

			platformIdx := o1.PlatformIdx
			results.conflicts = append(results.conflicts, Conflict{
				Time:          conflictTime,
				Position:      0.0,
				Station1Idx:   o1.StationIdx,
				Station2Idx:   o1.StationIdx,
				Journey1ID:    journey1.ID,
				Journey2ID:    journey2.ID,
				Type:          PlatformViolation,
				Segment1Times: &TimeWindow{Start: o1.TimeStart, End: o1.TimeEnd},
				Segment2Times: &TimeWindow{Start: o2.TimeStart, End: o2.TimeEnd},
				PlatformIdx:   &platformIdx,
				EdgeIndex:     nil,
				TimingUncertain: o1.TimingUncertain || o2.TimingUncertain,
				Actual1Times:  &TimeWindow{Start: o1.ActualArrival, End: o1.ActualDeparture},
				Actual2Times:  &TimeWindow{Start: o2.ActualArrival, End: o2.ActualDeparture},
			})

			if results.capReached() {
				return
			}
		}
	}
}

package simulation

import (
	"sort"
	"time"
)

// journeySegmentSpan is one hop's space-time span, resolved to station
// ordinals for the detector (distinct from JourneySegment, which carries
// edge/track/platform bindings rather than timing).
type journeySegmentSpan struct {
	TimeStart time.Time
	TimeEnd   time.Time
	IdxStart  int
	IdxEnd    int
}

// cachedSegment pairs a journeySegmentSpan with pre-computed spatial bounds
// and edge/track identity, for the binary-search pruning in
// checkSegmentsForPairCached (spec.md §4.5 step 1/4).
type cachedSegment struct {
	Span       journeySegmentSpan
	IdxMin     int
	IdxMax     int
	EdgeIndex  EdgeIndex
	TrackIndex int
	SegmentIdx int // index into journey.Segments, for timing-uncertainty lookups
}

// buildSegmentListWithBounds resolves journey's station_times into a
// time-sorted list of cachedSegments.
func buildSegmentListWithBounds(journey *TrainJourney, ctx *ConflictContext) []cachedSegment {
	var segments []cachedSegment

	type prevStop struct {
		departure time.Time
		idx       int
	}
	var prev *prevStop
	segmentIdx := 0

	for _, stop := range journey.StationTimes {
		stationIdx, ok := ctx.StationIndices[stop.Node]
		if !ok {
			continue
		}

		if prev != nil {
			var edgeIndex EdgeIndex
			var trackIndex int
			if segmentIdx < len(journey.Segments) {
				edgeIndex = journey.Segments[segmentIdx].EdgeIndex
				trackIndex = journey.Segments[segmentIdx].TrackIndex
			}

			span := journeySegmentSpan{
				TimeStart: prev.departure,
				TimeEnd:   stop.Arrival,
				IdxStart:  prev.idx,
				IdxEnd:    stationIdx,
			}
			idxMin, idxMax := prev.idx, stationIdx
			if idxMin > idxMax {
				idxMin, idxMax = idxMax, idxMin
			}
			segments = append(segments, cachedSegment{
				Span:       span,
				IdxMin:     idxMin,
				IdxMax:     idxMax,
				EdgeIndex:  edgeIndex,
				TrackIndex: trackIndex,
				SegmentIdx: segmentIdx,
			})
			segmentIdx++
		}
		prev = &prevStop{departure: stop.Departure, idx: stationIdx}
	}

	return segments
}

func stationPairSet(segments []cachedSegment) map[[2]int]bool {
	pairs := make(map[[2]int]bool, len(segments))
	for _, s := range segments {
		pairs[[2]int{s.IdxMin, s.IdxMax}] = true
	}
	return pairs
}

func stationPairSetsIntersect(a, b map[[2]int]bool) bool {
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	for pair := range small {
		if big[pair] {
			return true
		}
	}
	return false
}

// hasInheritedTimingAtSegment reports whether the destination station of
// journey.Segments[segIdx] had its arrival time inherited rather than
// explicit (spec.md §4.5 step 4: "timing_inherited[segment_idx + 1]").
func hasInheritedTimingAtSegment(journey *TrainJourney, segIdx int) bool {
	i := segIdx + 1
	if i < 0 || i >= len(journey.TimingInherited) {
		return false
	}
	return journey.TimingInherited[i]
}

// isSingleTrackBidirectional reports whether edge is a single bidirectional
// track, i.e. a block.
func isSingleTrackBidirectional(ctx *ConflictContext, edge EdgeIndex) bool {
	return ctx.IsSingleTrackBidirectional(edge)
}

// areReverseBidirectionalEdges reports whether edge1/edge2 are distinct
// edges connecting the same station pair in opposite orientations, both
// using the given track index, and both tracks bidirectional — the
// "two edges, one physical track" importer artifact (spec.md §9).
func areReverseBidirectionalEdges(ctx *ConflictContext, edge1, edge2 EdgeIndex, track1, track2 int, seg1, seg2 [2]int) bool {
	if !(seg1[0] == seg2[1] && seg1[1] == seg2[0]) {
		return false
	}
	if track1 != track2 {
		return false
	}
	return ctx.IsTrackBidirectional(edge1, track1) && ctx.IsTrackBidirectional(edge2, track2)
}

// checkSegmentsForPairCached walks segments1 against segments2 using a
// binary search for time locality, applying the filter chain of spec.md
// §4.5 step 4 before delegating to checkSegmentPair.
func checkSegmentsForPairCached(journey1, journey2 *TrainJourney, ctx *ConflictContext, results *detectionResults, segments1, segments2 []cachedSegment) {
	for _, cached1 := range segments1 {
		seg1 := cached1.Span

		startIdx := sort.Search(len(segments2), func(i int) bool {
			return !segments2[i].Span.TimeEnd.Before(seg1.TimeStart)
		})

		for _, cached2 := range segments2[startIdx:] {
			seg2 := cached2.Span

			if seg1.TimeEnd.Before(seg2.TimeStart) {
				break
			}

			if seg1.TimeEnd.Before(BaseMidnight) && seg2.TimeEnd.Before(BaseMidnight) {
				continue
			}

			if cached1.IdxMax <= cached2.IdxMin || cached2.IdxMax <= cached1.IdxMin {
				continue
			}

			sameEdge := cached1.EdgeIndex == cached2.EdgeIndex
			reverseEdges := areReverseBidirectionalEdges(ctx, cached1.EdgeIndex, cached2.EdgeIndex, cached1.TrackIndex, cached2.TrackIndex,
				[2]int{seg1.IdxStart, seg1.IdxEnd}, [2]int{seg2.IdxStart, seg2.IdxEnd})

			if !sameEdge && !reverseEdges {
				continue
			}
			if sameEdge && cached1.TrackIndex != cached2.TrackIndex {
				continue
			}

			checkSegmentPair(seg1, seg2, cached1.IdxMin, cached1.IdxMax, cached1.EdgeIndex, journey1, journey2, cached1.SegmentIdx, cached2.SegmentIdx, ctx, results)

			if results.capReached() {
				return
			}
		}
	}
}

func checkSegmentPair(segment1, segment2 journeySegmentSpan, seg1Min, seg1Max int, edgeIndex EdgeIndex, journey1, journey2 *TrainJourney, seg1Idx, seg2Idx int, ctx *ConflictContext, results *detectionResults) {
	sameDirection := (segment1.IdxStart < segment1.IdxEnd && segment2.IdxStart < segment2.IdxEnd) ||
		(segment1.IdxStart > segment1.IdxEnd && segment2.IdxStart > segment2.IdxEnd)

	singleTrack := isSingleTrackBidirectional(ctx, edgeIndex)

	if sameDirection && singleTrack {
		timeOverlap := segment1.TimeStart.Before(segment2.TimeEnd) && segment2.TimeStart.Before(segment1.TimeEnd)
		if !timeOverlap {
			return
		}

		conflictTime := segment1.TimeStart
		if segment2.TimeStart.After(conflictTime) {
			conflictTime = segment2.TimeStart
		}
		if conflictTime.Before(BaseMidnight) {
			return
		}

		leadingStart, leadingEnd := segment1.TimeStart, segment1.TimeEnd
		if segment2.TimeStart.Before(segment1.TimeStart) {
			leadingStart, leadingEnd = segment2.TimeStart, segment2.TimeEnd
		}

		duration := leadingEnd.Sub(leadingStart)
		elapsed := conflictTime.Sub(leadingStart)

		position := 0.0
		if duration > 0 {
			position = float64(elapsed) / float64(duration)
			if position < 0 {
				position = 0
			} else if position > 1 {
				position = 1
			}
		}

		if segment1.IdxStart > segment1.IdxEnd {
			position = 1.0 - position
		}

		timingUncertain := hasInheritedTimingAtSegment(journey1, seg1Idx) || hasInheritedTimingAtSegment(journey2, seg2Idx)

		edge := edgeIndex
		results.conflicts = append(results.conflicts, Conflict{
			Time:          conflictTime,
			Position:      position,
			Station1Idx:   seg1Min,
			Station2Idx:   seg1Max,
			Journey1ID:    journey1.ID,
			Journey2ID:    journey2.ID,
			Type:          BlockViolation,
			Segment1Times: &TimeWindow{Start: segment1.TimeStart, End: segment1.TimeEnd},
			Segment2Times: &TimeWindow{Start: segment2.TimeStart, End: segment2.TimeEnd},
			EdgeIndex:     &edge,
			TimingUncertain: timingUncertain,
		})
		return
	}

	isect, ok := calculateIntersection(segment1.TimeStart, segment1.TimeEnd, segment1.IdxStart, segment1.IdxEnd,
		segment2.TimeStart, segment2.TimeEnd, segment2.IdxStart, segment2.IdxEnd)
	if !ok {
		return
	}

	stationTimes := [4]time.Time{segment1.TimeStart, segment1.TimeEnd, segment2.TimeStart, segment2.TimeEnd}
	margin := time.Duration(ctx.StationMarginSecs * float64(time.Second))
	if isNearStation(isect, stationTimes, margin) {
		if isect.Time.Before(BaseMidnight) {
			return
		}
		timesWithIdx := [4]struct {
			Time time.Time
			Idx  int
		}{
			{segment1.TimeStart, segment1.IdxStart},
			{segment1.TimeEnd, segment1.IdxEnd},
			{segment2.TimeStart, segment2.IdxStart},
			{segment2.TimeEnd, segment2.IdxEnd},
		}
		stationIdx := findNearestStation(isect, timesWithIdx, segment1.IdxStart)
		results.stationCrossings = append(results.stationCrossings, StationCrossing{
			Time:       isect.Time,
			StationIdx: stationIdx,
			Journey1ID: journey1.ID,
			Journey2ID: journey2.ID,
		})
		return
	}

	if isect.Time.Before(BaseMidnight) {
		return
	}

	var conflictType ConflictType
	switch {
	case singleTrack:
		conflictType = BlockViolation
	case sameDirection:
		conflictType = Overtaking
	default:
		conflictType = HeadOn
	}

	timingUncertain := hasInheritedTimingAtSegment(journey1, seg1Idx) || hasInheritedTimingAtSegment(journey2, seg2Idx)
	edge := edgeIndex
	results.conflicts = append(results.conflicts, Conflict{
		Time:          isect.Time,
		Position:      isect.Position,
		Station1Idx:   seg1Min,
		Station2Idx:   seg1Max,
		Journey1ID:    journey1.ID,
		Journey2ID:    journey2.ID,
		Type:          conflictType,
		Segment1Times: &TimeWindow{Start: segment1.TimeStart, End: segment1.TimeEnd},
		Segment2Times: &TimeWindow{Start: segment2.TimeStart, End: segment2.TimeEnd},
		EdgeIndex:     &edge,
		TimingUncertain: timingUncertain,
	})
}

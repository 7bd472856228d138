package simulation

import (
	"sort"

	log "gopkg.in/inconshreveable/log15.v2"
)

var detectLogger = log.New("pkg", "simulation.conflict")

// stationBitmap is a word-packed bitmap over station ordinals, used to
// cheaply test whether two journeys share any station before running the
// expensive per-pair checks (spec.md §4.5 step 1/2).
type stationBitmap struct {
	words []uint64
}

func newStationBitmap(maxStationIdx int) *stationBitmap {
	numWords := maxStationIdx/64 + 1
	return &stationBitmap{words: make([]uint64, numWords)}
}

func (b *stationBitmap) insert(stationIdx int) {
	word := stationIdx / 64
	bit := uint(stationIdx % 64)
	if word < len(b.words) {
		b.words[word] |= 1 << bit
	}
}

func (b *stationBitmap) intersects(other *stationBitmap) bool {
	n := len(b.words)
	if len(other.words) < n {
		n = len(other.words)
	}
	for i := 0; i < n; i++ {
		if b.words[i]&other.words[i] != 0 {
			return true
		}
	}
	return false
}

// DetectConflicts runs the sweep-line conflict detection pipeline over
// journeys against ctx, returning conflicts and station crossings in
// emission order (spec.md §4.5). Detection stops once MaxConflicts is
// reached.
func DetectConflicts(journeys []*TrainJourney, ctx *ConflictContext) ([]Conflict, []StationCrossing) {
	results := &detectionResults{}

	type timedJourney struct {
		start, end int64 // unix nanos, for a stable total order
		idx        int
	}

	var timed []timedJourney
	for i, j := range journeys {
		if len(j.StationTimes) == 0 {
			continue
		}
		start := j.StationTimes[0].Arrival
		end := j.StationTimes[len(j.StationTimes)-1].Departure
		timed = append(timed, timedJourney{start: start.UnixNano(), end: end.UnixNano(), idx: i})
	}
	sort.SliceStable(timed, func(i, j int) bool { return timed[i].start < timed[j].start })

	maxStationIdx := len(ctx.StationIndices)

	platformOccupancies := make([][]platformOccupancy, len(journeys))
	stationBitmaps := make([]*stationBitmap, len(journeys))
	segmentLists := make([][]cachedSegment, len(journeys))
	stationPairSets := make([]map[[2]int]bool, len(journeys))

	for _, tj := range timed {
		journey := journeys[tj.idx]
		occs := extractPlatformOccupancies(journey, ctx)
		platformOccupancies[tj.idx] = occs

		bitmap := newStationBitmap(maxStationIdx)
		for _, occ := range occs {
			bitmap.insert(occ.StationIdx)
		}
		stationBitmaps[tj.idx] = bitmap

		segments := buildSegmentListWithBounds(journey, ctx)
		segmentLists[tj.idx] = segments
		stationPairSets[tj.idx] = stationPairSet(segments)
	}

	for i := 0; i < len(timed); i++ {
		if results.capReached() {
			break
		}

		startI, endI, idxI := timed[i].start, timed[i].end, timed[i].idx
		journeyI := journeys[idxI]
		stationsI := stationBitmaps[idxI]
		pairsI := stationPairSets[idxI]

		for k := i + 1; k < len(timed); k++ {
			startJ, endJ, idxJ := timed[k].start, timed[k].end, timed[k].idx

			if startJ >= endI {
				break
			}
			if startI >= endJ {
				continue
			}

			stationsJ := stationBitmaps[idxJ]
			pairsJ := stationPairSets[idxJ]

			sharesStations := stationsI.intersects(stationsJ)
			sharesStationPairs := stationPairSetsIntersect(pairsI, pairsJ)

			if !sharesStations && !sharesStationPairs {
				continue
			}

			journeyJ := journeys[idxJ]
			checkJourneyPairCached(journeyI, journeyJ, ctx, results,
				platformOccupancies[idxI], platformOccupancies[idxJ],
				segmentLists[idxI], segmentLists[idxJ],
				sharesStations, sharesStationPairs)

			if results.capReached() {
				break
			}
		}
	}

	if results.capReached() {
		detectLogger.Warn("conflict cap reached, truncating output", "cap", MaxConflicts, "journeys", len(journeys))
	}
	detectLogger.Debug("detection run complete", "journeys", len(journeys), "conflicts", len(results.conflicts), "crossings", len(results.stationCrossings))

	return results.conflicts, results.stationCrossings
}

func checkJourneyPairCached(journey1, journey2 *TrainJourney, ctx *ConflictContext, results *detectionResults, occ1, occ2 []platformOccupancy, segs1, segs2 []cachedSegment, sharesStations, sharesStationPairs bool) {
	if sharesStations {
		checkPlatformConflictsCached(journey1, journey2, results, occ1, occ2, ctx)
	}

	if !sharesStationPairs {
		return
	}
	if results.capReached() {
		return
	}

	checkSegmentsForPairCached(journey1, journey2, ctx, results, segs1, segs2)
}

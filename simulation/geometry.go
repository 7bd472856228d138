package simulation

import "time"

// parallelEpsilon is the determinant threshold below which two space-time
// segments are treated as parallel (spec.md §4.5: "|denom| < 1e-4").
const parallelEpsilon = 0.0001

type intersection struct {
	Time     time.Time
	Position float64 // 0..1 between stations
}

// calculateIntersection parametrically solves for the intersection of two
// line segments in (time-fraction, station-ordinal) space. It returns
// ok=false if the lines are parallel or the intersection falls outside
// either segment's [0,1] parameter range.
func calculateIntersection(t1Start, t1End time.Time, s1Start, s1End int, t2Start, t2End time.Time, s2Start, s2End int) (intersection, bool) {
	x1Start := TimeToFraction(t1Start)
	x1End := TimeToFraction(t1End)
	y1Start := float64(s1Start)
	y1End := float64(s1End)

	x2Start := TimeToFraction(t2Start)
	x2End := TimeToFraction(t2End)
	y2Start := float64(s2Start)
	y2End := float64(s2End)

	denom := (x1Start-x1End)*(y2Start-y2End) - (y1Start-y1End)*(x2Start-x2End)
	if absFloat(denom) < parallelEpsilon {
		return intersection{}, false
	}

	t := ((x1Start-x2Start)*(y2Start-y2End) - (y1Start-y2Start)*(x2Start-x2End)) / denom
	u := -((x1Start-x1End)*(y1Start-y2Start) - (y1Start-y1End)*(x1Start-x2Start)) / denom

	if t < 0.0 || t > 1.0 || u < 0.0 || u > 1.0 {
		return intersection{}, false
	}

	xIntersect := x1Start + t*(x1End-x1Start)
	yIntersect := y1Start + t*(y1End-y1Start)

	intersectionTime := BaseDate.Add(time.Duration(xIntersect * float64(time.Hour)))
	position := yIntersect - floorFloat(yIntersect)

	return intersection{Time: intersectionTime, Position: position}, true
}

// isNearStation reports whether intersection.Time falls within margin of
// any of the four segment endpoint times.
func isNearStation(isect intersection, times [4]time.Time, margin time.Duration) bool {
	for _, t := range times {
		diff := t.Sub(isect.Time)
		if diff < 0 {
			diff = -diff
		}
		if diff < margin {
			return true
		}
	}
	return false
}

// findNearestStation returns the station ordinal whose endpoint time is
// closest to intersection.Time.
func findNearestStation(isect intersection, timesWithIdx [4]struct {
	Time time.Time
	Idx  int
}, defaultIdx int) int {
	best := defaultIdx
	var bestDiff time.Duration = -1
	for _, tw := range timesWithIdx {
		diff := tw.Time.Sub(isect.Time)
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			best = tw.Idx
		}
	}
	return best
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func floorFloat(f float64) float64 {
	i := int64(f)
	if f < 0 && float64(i) != f {
		i--
	}
	return float64(i)
}

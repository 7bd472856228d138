package simulation

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// buildLinearGraph builds a chain of stations A-B-C... connected by the
// given segment factory, returning the graph, the ordered node indices, and
// the ordered edge indices.
func buildLinearGraph(names []string, segmentFor func(i int) TrackSegment) (*Graph, []NodeIndex, []EdgeIndex) {
	g := NewGraph()
	nodes := make([]NodeIndex, len(names))
	for i, name := range names {
		nodes[i] = g.AddStation(&Station{Name: name, Platforms: []Platform{{Name: "1"}, {Name: "2"}}})
	}
	edges := make([]EdgeIndex, len(names)-1)
	for i := 0; i < len(names)-1; i++ {
		edges[i] = g.AddEdge(nodes[i], nodes[i+1], segmentFor(i))
	}
	return g, nodes, edges
}

func stationOrdinals(nodes []NodeIndex) map[NodeIndex]int {
	m := make(map[NodeIndex]int, len(nodes))
	for i, n := range nodes {
		m[n] = i
	}
	return m
}

func at(h, m, s int) time.Time {
	return BaseDate.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// straightJourney builds a journey with one hop per edge, evenly splitting
// depart..arrive across the hops. Fine for two-station journeys; journeys
// with an intermediate stop should be built by hand when the stop time at
// that station matters (see the overtaking test below).
func straightJourney(id string, nodes []NodeIndex, edges []EdgeIndex, trackIndex int, startIdx, endIdx int, depart, arrive time.Time) *TrainJourney {
	step := 1
	if endIdx < startIdx {
		step = -1
	}
	n := 0
	for i := startIdx; i != endIdx; i += step {
		n++
	}
	perHop := arrive.Sub(depart) / time.Duration(n)

	stops := []StationStop{{Node: nodes[startIdx], Arrival: depart, Departure: depart}}
	var segs []JourneySegment
	inherited := []bool{false}

	cur := depart
	idx := startIdx
	for i := 0; i < n; i++ {
		next := idx + step
		cur = cur.Add(perHop)
		edgeIdx := edges[idx]
		if step < 0 {
			edgeIdx = edges[next]
		}
		stops = append(stops, StationStop{Node: nodes[next], Arrival: cur, Departure: cur})
		segs = append(segs, JourneySegment{EdgeIndex: edgeIdx, TrackIndex: trackIndex})
		inherited = append(inherited, false)
		idx = next
	}

	return &TrainJourney{
		ID:              id,
		StationTimes:    stops,
		Segments:        segs,
		TimingInherited: inherited,
		RouteStartNode:  nodes[startIdx],
		RouteEndNode:    nodes[endIdx],
	}
}

func TestDetectConflicts_HeadOn(t *testing.T) {
	Convey("Given A-B on a double track with distinct forward/backward tracks", t, func() {
		g, nodes, edges := buildLinearGraph([]string{"A", "B"}, func(i int) TrackSegment { return NewDoubleTrack() })
		ctx := NewConflictContext(g, stationOrdinals(nodes), 30*time.Second, 30*time.Second, false)

		j1 := straightJourney("J1", nodes, edges, 0, 0, 1, at(8, 0, 0), at(8, 10, 0))
		j2 := straightJourney("J2", nodes, edges, 1, 1, 0, at(8, 0, 0), at(8, 10, 0))

		Convey("meeting trains on distinct tracks produce no conflict", func() {
			conflicts, _ := DetectConflicts([]*TrainJourney{j1, j2}, ctx)
			So(conflicts, ShouldHaveLength, 0)
		})
	})

	Convey("Given A-B on a single bidirectional track", t, func() {
		g, nodes, edges := buildLinearGraph([]string{"A", "B"}, func(i int) TrackSegment { return NewSingleTrack() })
		ctx := NewConflictContext(g, stationOrdinals(nodes), 30*time.Second, 30*time.Second, false)

		j1 := straightJourney("J1", nodes, edges, 0, 0, 1, at(8, 0, 0), at(8, 10, 0))
		j2 := straightJourney("J2", nodes, edges, 0, 1, 0, at(8, 0, 0), at(8, 10, 0))

		Convey("meeting trains produce one BlockViolation at the block midpoint", func() {
			conflicts, crossings := DetectConflicts([]*TrainJourney{j1, j2}, ctx)
			So(crossings, ShouldHaveLength, 0)
			So(conflicts, ShouldHaveLength, 1)
			So(conflicts[0].Type, ShouldEqual, BlockViolation)
			So(conflicts[0].Time.Sub(at(8, 5, 0)), ShouldBeBetween, -time.Second, time.Second)
			So(conflicts[0].Position, ShouldAlmostEqual, 0.5, 0.02)
		})
	})
}

// Overtaking on multi-track, same direction, different speeds. Stop times
// at B are deliberately uneven between the two journeys so the geometric
// crossing falls mid-segment rather than exactly at the shared station
// (which the detector would instead classify as a StationCrossing).
func TestDetectConflicts_Overtaking(t *testing.T) {
	Convey("Given A-B-C on triple track and a slow train departing before a fast one", t, func() {
		seg := func(i int) TrackSegment {
			return TrackSegment{Tracks: []Track{{Direction: Forward}, {Direction: Bidirectional}, {Direction: Backward}}}
		}
		g, nodes, edges := buildLinearGraph([]string{"A", "B", "C"}, seg)
		ctx := NewConflictContext(g, stationOrdinals(nodes), 30*time.Second, 30*time.Second, false)

		slow := &TrainJourney{
			ID: "slow",
			StationTimes: []StationStop{
				{Node: nodes[0], Arrival: at(8, 0, 0), Departure: at(8, 0, 0)},
				{Node: nodes[1], Arrival: at(8, 25, 0), Departure: at(8, 25, 0)},
				{Node: nodes[2], Arrival: at(8, 40, 0), Departure: at(8, 40, 0)},
			},
			Segments: []JourneySegment{
				{EdgeIndex: edges[0], TrackIndex: 0},
				{EdgeIndex: edges[1], TrackIndex: 0},
			},
			TimingInherited: []bool{false, false, false},
		}
		fast := &TrainJourney{
			ID: "fast",
			StationTimes: []StationStop{
				{Node: nodes[0], Arrival: at(8, 10, 0), Departure: at(8, 10, 0)},
				{Node: nodes[1], Arrival: at(8, 20, 0), Departure: at(8, 20, 0)},
				{Node: nodes[2], Arrival: at(8, 30, 0), Departure: at(8, 30, 0)},
			},
			Segments: []JourneySegment{
				{EdgeIndex: edges[0], TrackIndex: 0},
				{EdgeIndex: edges[1], TrackIndex: 0},
			},
			TimingInherited: []bool{false, false, false},
		}

		Convey("the fast train overtaking the slow one produces one Overtaking conflict", func() {
			conflicts, _ := DetectConflicts([]*TrainJourney{slow, fast}, ctx)
			So(conflicts, ShouldHaveLength, 1)
			So(conflicts[0].Type, ShouldEqual, Overtaking)
			So(conflicts[0].TimingUncertain, ShouldBeFalse)
			So(conflicts[0].Time.Sub(at(8, 16, 40)), ShouldBeBetween, -time.Minute, time.Minute)
		})
	})
}

func TestDetectConflicts_StationCrossing(t *testing.T) {
	Convey("Given A-B single-track trains meeting within the station margin", t, func() {
		g, nodes, edges := buildLinearGraph([]string{"A", "B"}, func(i int) TrackSegment { return NewSingleTrack() })
		ctx := NewConflictContext(g, stationOrdinals(nodes), 30*time.Second, 30*time.Second, false)

		j1 := straightJourney("J1", nodes, edges, 0, 0, 1, at(8, 0, 0), at(8, 10, 0))
		j2 := straightJourney("J2", nodes, edges, 0, 1, 0, at(8, 9, 50), at(8, 20, 0))
		// J2 waits at B on the other platform, so the meeting is not also a
		// platform conflict there.
		j2.Segments[0].OriginPlatform = 1

		Convey("no conflict is emitted, only a station crossing at B", func() {
			conflicts, crossings := DetectConflicts([]*TrainJourney{j1, j2}, ctx)
			So(conflicts, ShouldHaveLength, 0)
			So(crossings, ShouldHaveLength, 1)
			So(crossings[0].StationIdx, ShouldEqual, 1)
		})
	})
}

func TestDetectConflicts_Invariants(t *testing.T) {
	Convey("Given two journeys that never overlap in time", t, func() {
		g, nodes, edges := buildLinearGraph([]string{"A", "B"}, func(i int) TrackSegment { return NewSingleTrack() })
		ctx := NewConflictContext(g, stationOrdinals(nodes), 30*time.Second, 30*time.Second, false)

		j1 := straightJourney("J1", nodes, edges, 0, 0, 1, at(8, 0, 0), at(8, 10, 0))
		j2 := straightJourney("J2", nodes, edges, 0, 0, 1, at(9, 0, 0), at(9, 10, 0))

		Convey("no conflict or crossing is emitted", func() {
			conflicts, crossings := DetectConflicts([]*TrainJourney{j1, j2}, ctx)
			So(conflicts, ShouldHaveLength, 0)
			So(crossings, ShouldHaveLength, 0)
		})
	})

	Convey("Given a head-on meeting entirely before base midnight", t, func() {
		g, nodes, edges := buildLinearGraph([]string{"A", "B"}, func(i int) TrackSegment { return NewSingleTrack() })
		ctx := NewConflictContext(g, stationOrdinals(nodes), 30*time.Second, 30*time.Second, false)

		before := BaseMidnight.Add(-2 * time.Hour)
		j1 := straightJourney("J1", nodes, edges, 0, 0, 1, before, before.Add(10*time.Minute))
		j2 := straightJourney("J2", nodes, edges, 0, 1, 0, before, before.Add(10*time.Minute))

		Convey("the conflict is discarded", func() {
			conflicts, _ := DetectConflicts([]*TrainJourney{j1, j2}, ctx)
			So(conflicts, ShouldHaveLength, 0)
		})
	})

	Convey("Given a head-on meeting on a single track", t, func() {
		g, nodes, edges := buildLinearGraph([]string{"A", "B"}, func(i int) TrackSegment { return NewSingleTrack() })
		ctx := NewConflictContext(g, stationOrdinals(nodes), 30*time.Second, 30*time.Second, false)

		j1 := straightJourney("J1", nodes, edges, 0, 0, 1, at(8, 0, 0), at(8, 10, 0))
		j2 := straightJourney("J2", nodes, edges, 0, 1, 0, at(8, 0, 0), at(8, 10, 0))

		Convey("running detection twice yields identical output, in order", func() {
			c1, s1 := DetectConflicts([]*TrainJourney{j1, j2}, ctx)
			c2, s2 := DetectConflicts([]*TrainJourney{j1, j2}, ctx)
			So(len(c1), ShouldEqual, len(c2))
			So(len(s1), ShouldEqual, len(s2))
			for i := range c1 {
				So(c1[i].Time.Equal(c2[i].Time), ShouldBeTrue)
				So(c1[i].Type, ShouldEqual, c2[i].Type)
			}
		})
	})
}

package simulation

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGraphStableIndices(t *testing.T) {
	Convey("Given a graph with three stations", t, func() {
		g := NewGraph()
		a := g.AddStation(&Station{Name: "A"})
		b := g.AddStation(&Station{Name: "B"})
		c := g.AddStation(&Station{Name: "C"})
		eAB := g.AddEdge(a, b, NewDoubleTrack())

		Convey("removing the middle node does not renumber the others", func() {
			g.RemoveNode(b)
			So(g.Node(a), ShouldNotBeNil)
			So(g.Node(c), ShouldNotBeNil)
			So(g.Node(b), ShouldBeNil)
		})

		Convey("a freed node slot is reused by the next AddStation", func() {
			g.RemoveNode(b)
			d := g.AddStation(&Station{Name: "D"})
			So(d, ShouldEqual, b)
			So(g.Node(d).Station.Name, ShouldEqual, "D")
		})

		Convey("removing an edge tombstones it without disturbing other edges", func() {
			eBC := g.AddEdge(b, c, NewSingleTrack())
			g.RemoveEdge(eAB)
			So(g.Edge(eAB), ShouldBeNil)
			So(g.Edge(eBC), ShouldNotBeNil)
		})

		Convey("StationIndex resolves a station added earlier by name", func() {
			idx, ok := g.StationIndex("A")
			So(ok, ShouldBeTrue)
			So(idx, ShouldEqual, a)
		})

		Convey("removing a station clears its name lookup", func() {
			g.RemoveNode(a)
			_, ok := g.StationIndex("A")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestTrackSegmentHelpers(t *testing.T) {
	Convey("Given single- and double-track segments", t, func() {
		single := NewSingleTrack()
		double := NewDoubleTrack()

		Convey("a single bidirectional track reports as such", func() {
			So(single.IsSingleTrackBidirectional(), ShouldBeTrue)
		})
		Convey("a double track does not", func() {
			So(double.IsSingleTrackBidirectional(), ShouldBeFalse)
		})
	})

	Convey("Given a graph with a double-track edge", t, func() {
		g := NewGraph()
		a := g.AddStation(&Station{Name: "A"})
		b := g.AddStation(&Station{Name: "B"})
		e := g.AddEdge(a, b, NewDoubleTrack())

		Convey("SelectTrackForDirection picks the forward track going forward", func() {
			idx := g.SelectTrackForDirection(e, false)
			So(g.Edge(e).Tracks[idx].Direction, ShouldEqual, Forward)
		})
		Convey("SelectTrackForDirection picks the backward track going backward", func() {
			idx := g.SelectTrackForDirection(e, true)
			So(g.Edge(e).Tracks[idx].Direction, ShouldEqual, Backward)
		})
	})

	Convey("Given an edge with zero tracks", t, func() {
		g := NewGraph()
		a := g.AddStation(&Station{Name: "A"})
		b := g.AddStation(&Station{Name: "B"})
		e := g.AddEdge(a, b, TrackSegment{})

		Convey("AddEdge substitutes a single bidirectional track instead of panicking", func() {
			So(g.Edge(e).Tracks, ShouldHaveLength, 1)
			So(g.Edge(e).Tracks[0].Direction, ShouldEqual, Bidirectional)
		})
	})
}

func TestValidateJunctionTransit(t *testing.T) {
	Convey("Given a junction with no explicit rules", t, func() {
		g := NewGraph()
		j := g.AddJunction(&Junction{Name: "J"})

		Convey("any transit is allowed by default", func() {
			So(g.ValidateJunctionTransit(j, 0, 1), ShouldBeTrue)
		})
	})

	Convey("Given a junction with an explicit denying rule", t, func() {
		g := NewGraph()
		j := g.AddJunction(&Junction{Name: "J", Rules: []RoutingRule{
			{FromEdge: 0, ToEdge: 1, Allowed: false},
		}})

		Convey("the ruled pair is denied", func() {
			So(g.ValidateJunctionTransit(j, 0, 1), ShouldBeFalse)
		})
		Convey("an unruled pair still defaults to allowed", func() {
			So(g.ValidateJunctionTransit(j, 1, 2), ShouldBeTrue)
		})
	})
}

package simulation

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGraphJSONRoundTrip(t *testing.T) {
	Convey("Given a graph with a tombstoned hole in its index space", t, func() {
		g := NewGraph()
		a := g.AddStation(&Station{Name: "A"})
		b := g.AddStation(&Station{Name: "B"})
		g.AddStation(&Station{Name: "TEMP"})
		eAB := g.AddEdge(a, b, NewDoubleTrack())
		temp, _ := g.StationIndex("TEMP")
		g.RemoveNode(temp)

		Convey("marshaling then unmarshaling preserves node indices", func() {
			data, err := json.Marshal(g)
			So(err, ShouldBeNil)

			restored := NewGraph()
			err = json.Unmarshal(data, restored)
			So(err, ShouldBeNil)

			So(restored.Node(a).Station.Name, ShouldEqual, "A")
			So(restored.Node(b).Station.Name, ShouldEqual, "B")
			So(restored.Node(temp), ShouldBeNil)
		})

		Convey("the edge's endpoints and track layout survive the round trip", func() {
			data, err := json.Marshal(g)
			So(err, ShouldBeNil)

			restored := NewGraph()
			So(json.Unmarshal(data, restored), ShouldBeNil)

			from, to, ok := restored.GetTrackEndpoints(eAB)
			So(ok, ShouldBeTrue)
			So(from, ShouldEqual, a)
			So(to, ShouldEqual, b)
			So(restored.Edge(eAB).Tracks, ShouldHaveLength, 2)
		})

		Convey("a freed node slot on the restored graph is still reusable", func() {
			data, err := json.Marshal(g)
			So(err, ShouldBeNil)

			restored := NewGraph()
			So(json.Unmarshal(data, restored), ShouldBeNil)

			next := restored.AddStation(&Station{Name: "NEW"})
			So(next, ShouldEqual, temp)
		})
	})

	Convey("Given a junction node with routing rules", t, func() {
		g := NewGraph()
		j := g.AddJunction(&Junction{Name: "J", Rules: []RoutingRule{{FromEdge: 0, ToEdge: 1, Allowed: false}}})

		Convey("the rule set survives a JSON round trip", func() {
			data, err := json.Marshal(g)
			So(err, ShouldBeNil)

			restored := NewGraph()
			So(json.Unmarshal(data, restored), ShouldBeNil)
			So(restored.ValidateJunctionTransit(j, 0, 1), ShouldBeFalse)
			So(restored.ValidateJunctionTransit(j, 1, 2), ShouldBeTrue)
		})
	})
}

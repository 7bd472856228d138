package simulation

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerateDepartures(t *testing.T) {
	Convey("Given an Auto-mode line from A to B", t, func() {
		g := NewGraph()
		a := g.AddStation(&Station{Name: "A"})
		b := g.AddStation(&Station{Name: "B"})
		eAB := g.AddEdge(a, b, NewSingleTrack())
		dur := 10 * time.Minute

		line := &Line{
			ID:             "L1",
			ScheduleMode:   Auto,
			ForwardRoute:   []RouteSegment{{EdgeIndex: eAB, Duration: &dur}},
			FirstDeparture: at(8, 0, 0),
			LastDeparture:  at(8, 30, 0),
			Frequency:      30 * time.Minute,
			Days:           AllDays,
		}

		windowStart := at(0, 0, 0)
		windowEnd := at(23, 59, 59)
		departures := GenerateDepartures([]*Line{line}, g, []NodeIndex{a, b}, windowStart, windowEnd)

		Convey("station B's departures are offset by the segment duration", func() {
			var atB []Departure
			for _, d := range departures {
				if d.Station == "B" {
					atB = append(atB, d)
				}
			}
			So(atB, ShouldHaveLength, 2)
			So(atB[0].Time.Sub(at(8, 10, 0)), ShouldBeBetween, -time.Second, time.Second)
		})

		Convey("departures are sorted by time", func() {
			for i := 1; i < len(departures); i++ {
				So(departures[i-1].Time.After(departures[i].Time), ShouldBeFalse)
			}
		})
	})

	Convey("Given a Manual-mode line with a single departure", t, func() {
		g := NewGraph()
		a := g.AddStation(&Station{Name: "A"})
		b := g.AddStation(&Station{Name: "B"})
		eAB := g.AddEdge(a, b, NewSingleTrack())
		dur := 15 * time.Minute

		line := &Line{
			ID:           "L2",
			ScheduleMode: Manual,
			ForwardRoute: []RouteSegment{{EdgeIndex: eAB, Duration: &dur}},
			ManualDepartures: []ManualDeparture{
				{Time: at(9, 0, 0), FromStation: a, ToStation: b},
			},
		}

		departures := GenerateDepartures([]*Line{line}, g, []NodeIndex{a, b}, at(0, 0, 0), at(23, 59, 59))

		Convey("a departure is produced for both endpoints, offset by travel time", func() {
			var byStation = map[string]time.Time{}
			for _, d := range departures {
				byStation[d.Station] = d.Time
			}
			So(byStation["A"].Equal(at(9, 0, 0)), ShouldBeTrue)
			So(byStation["B"].Equal(at(9, 15, 0)), ShouldBeTrue)
		})
	})
}

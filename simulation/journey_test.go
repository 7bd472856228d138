package simulation

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDistributeDuration(t *testing.T) {
	Convey("Given a total duration split across distance-weighted sub-segments", t, func() {
		out := DistributeDuration(10*time.Minute, []float64{1, 1, 2})

		Convey("the remainder is absorbed by the last sub-segment, not lost to truncation", func() {
			var sum time.Duration
			for _, d := range out {
				sum += d
			}
			So(sum, ShouldEqual, 10*time.Minute)
		})
		Convey("shares are proportional to distance", func() {
			So(out[2], ShouldBeGreaterThan, out[0])
			So(out[0], ShouldEqual, out[1])
		})
	})

	Convey("Given sub-segments with no distance information", t, func() {
		out := DistributeDuration(9*time.Minute, []float64{0, 0, 0})

		Convey("the total splits evenly", func() {
			So(out[0], ShouldEqual, 3*time.Minute)
			So(out[1], ShouldEqual, 3*time.Minute)
			So(out[2], ShouldEqual, 3*time.Minute)
		})
	})
}

// Fixture 6: a segment with duration=None inherits a neighbour's duration
// and flags the resulting arrival as timing_inherited (spec.md §4.4, §8).
func TestBuildJourneyFromRoute_InheritedTiming(t *testing.T) {
	Convey("Given a three-segment line whose middle segment has no explicit duration", t, func() {
		g := NewGraph()
		a := g.AddStation(&Station{Name: "A"})
		b := g.AddStation(&Station{Name: "B"})
		c := g.AddStation(&Station{Name: "C"})
		d := g.AddStation(&Station{Name: "D"})
		eAB := g.AddEdge(a, b, NewSingleTrack())
		eBC := g.AddEdge(b, c, NewSingleTrack())
		eCD := g.AddEdge(c, d, NewSingleTrack())

		dur := func(m int) *time.Duration {
			v := time.Duration(m) * time.Minute
			return &v
		}
		line := &Line{ID: "L1", DefaultWaitTime: 2 * time.Minute}
		route := []RouteSegment{
			{EdgeIndex: eAB, Duration: dur(10)},
			{EdgeIndex: eBC, Duration: nil},
			{EdgeIndex: eCD, Duration: dur(10)},
		}

		journey, ok := buildJourneyFromRoute(route, line, g, at(8, 0, 0), 0, true)

		Convey("the journey builds successfully", func() {
			So(ok, ShouldBeTrue)
			So(journey.StationTimes, ShouldHaveLength, 4)
		})
		Convey("the middle segment inherits the forward neighbour's duration", func() {
			arrivalAtC := journey.StationTimes[2].Arrival
			arrivalAtB := journey.StationTimes[1].Arrival
			So(arrivalAtC.Sub(arrivalAtB), ShouldEqual, 10*time.Minute)
		})
		Convey("timing_inherited is set only at the inherited stop", func() {
			So(journey.TimingInherited[0], ShouldBeFalse)
			So(journey.TimingInherited[1], ShouldBeFalse)
			So(journey.TimingInherited[2], ShouldBeTrue)
			So(journey.TimingInherited[3], ShouldBeFalse)
		})
	})

	Convey("Given a route with no explicit duration anywhere", t, func() {
		g := NewGraph()
		a := g.AddStation(&Station{Name: "A"})
		b := g.AddStation(&Station{Name: "B"})
		eAB := g.AddEdge(a, b, NewSingleTrack())

		line := &Line{ID: "L1", DefaultWaitTime: 4 * time.Minute}
		route := []RouteSegment{{EdgeIndex: eAB, Duration: nil}}

		journey, ok := buildJourneyFromRoute(route, line, g, at(8, 0, 0), 0, true)

		Convey("the line's default wait time fills the gap", func() {
			So(ok, ShouldBeTrue)
			So(journey.StationTimes[1].Arrival.Sub(journey.StationTimes[0].Arrival), ShouldEqual, 4*time.Minute)
			So(journey.TimingInherited[1], ShouldBeTrue)
		})
	})

	Convey("Given a route with a dangling edge reference", t, func() {
		g := NewGraph()
		line := &Line{ID: "L1"}
		route := []RouteSegment{{EdgeIndex: EdgeIndex(99)}}

		_, ok := buildJourneyFromRoute(route, line, g, at(8, 0, 0), 0, true)

		Convey("the journey is dropped rather than panicking", func() {
			So(ok, ShouldBeFalse)
		})
	})
}

// spec.md defines departure_time as "the departure from the first
// station" — with a non-zero first-stop wait that is later than the
// arrival recorded in StationTimes[0], not equal to it.
func TestBuildJourneyFromRoute_DepartureTimeIsFirstStationDeparture(t *testing.T) {
	Convey("Given a route with a non-zero first-stop wait", t, func() {
		g := NewGraph()
		a := g.AddStation(&Station{Name: "A"})
		b := g.AddStation(&Station{Name: "B"})
		eAB := g.AddEdge(a, b, NewSingleTrack())
		dur := 10 * time.Minute

		line := &Line{ID: "L1"}
		route := []RouteSegment{{EdgeIndex: eAB, Duration: &dur}}
		firstStopWait := 5 * time.Minute

		journey, ok := buildJourneyFromRoute(route, line, g, at(8, 0, 0), firstStopWait, true)
		So(ok, ShouldBeTrue)

		Convey("DepartureTime equals the first station's recorded departure, not its arrival", func() {
			So(journey.DepartureTime.Equal(journey.StationTimes[0].Departure), ShouldBeTrue)
			So(journey.DepartureTime.Equal(at(8, 5, 0)), ShouldBeTrue)
		})
		Convey("DepartureTime is distinct from the first station's arrival", func() {
			So(journey.DepartureTime.Equal(journey.StationTimes[0].Arrival), ShouldBeFalse)
		})
	})
}

func TestSyncReturnDurations(t *testing.T) {
	Convey("Given a forward route with explicit durations and a sync'd return route", t, func() {
		fwdDur1, fwdDur2 := 5*time.Minute, 8*time.Minute
		forward := []RouteSegment{{Duration: &fwdDur1}, {Duration: &fwdDur2}}
		ret := []RouteSegment{{WaitTime: time.Minute}, {WaitTime: 2 * time.Minute}}

		out := syncReturnDurations(forward, ret)

		Convey("return durations mirror the forward route in reverse order", func() {
			So(*out[0].Duration, ShouldEqual, fwdDur2)
			So(*out[1].Duration, ShouldEqual, fwdDur1)
		})
		Convey("wait times are left untouched", func() {
			So(out[0].WaitTime, ShouldEqual, time.Minute)
			So(out[1].WaitTime, ShouldEqual, 2*time.Minute)
		})
	})
}

func TestGenerateJourneys_RespectsLastDeparture(t *testing.T) {
	Convey("Given an Auto-mode line bounded by first/last departure", t, func() {
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
			LastDeparture:  at(9, 0, 0),
			Frequency:      30 * time.Minute,
			Days:           AllDays,
		}

		journeys := GenerateJourneys([]*Line{line}, g, 0)

		Convey("no departure is generated after last_departure's time of day", func() {
			for _, j := range journeys {
				hour, min, _ := j.DepartureTime.Clock()
				So(hour < 9 || (hour == 9 && min == 0), ShouldBeTrue)
			}
		})
		Convey("at least one departure is generated within the window", func() {
			So(len(journeys), ShouldBeGreaterThan, 0)
		})
	})
}

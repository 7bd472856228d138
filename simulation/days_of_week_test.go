package simulation

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDaysOfWeekContains(t *testing.T) {
	Convey("Given a weekday mask", t, func() {
		d := Monday | Wednesday | Friday

		Convey("it contains a single included day", func() {
			So(d.Contains(Wednesday), ShouldBeTrue)
		})
		Convey("it contains a subset of included days", func() {
			So(d.Contains(Monday|Friday), ShouldBeTrue)
		})
		Convey("it does not contain an excluded day", func() {
			So(d.Contains(Tuesday), ShouldBeFalse)
		})
		Convey("it does not contain a set mixing included and excluded days", func() {
			So(d.Contains(Monday|Tuesday), ShouldBeFalse)
		})
	})

	Convey("AllDays contains every individual day", t, func() {
		for _, day := range []DaysOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday} {
			So(AllDays.Contains(day), ShouldBeTrue)
		}
		So(AllDays.IsAllDays(), ShouldBeTrue)
	})
}

func TestDayFromIndex(t *testing.T) {
	Convey("Given valid weekday indices", t, func() {
		day, ok := DayFromIndex(0)
		So(ok, ShouldBeTrue)
		So(day, ShouldEqual, Monday)

		day, ok = DayFromIndex(6)
		So(ok, ShouldBeTrue)
		So(day, ShouldEqual, Sunday)
	})

	Convey("An out-of-range index is rejected", t, func() {
		_, ok := DayFromIndex(7)
		So(ok, ShouldBeFalse)
		_, ok = DayFromIndex(-1)
		So(ok, ShouldBeFalse)
	})
}

func TestDaysOfWeekToDisplayString(t *testing.T) {
	Convey("Given recognizable presets", t, func() {
		So(AllDays.ToDisplayString(), ShouldEqual, "All days")
		So(Weekdays.ToDisplayString(), ShouldEqual, "Weekdays")
		So(Weekends.ToDisplayString(), ShouldEqual, "Weekends")
	})

	Convey("Given an arbitrary combination", t, func() {
		d := Monday | Wednesday
		So(d.ToDisplayString(), ShouldEqual, "Mon, Wed")
	})
}

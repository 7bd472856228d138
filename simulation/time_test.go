package simulation

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTimeToFraction(t *testing.T) {
	Convey("Given a time relative to BaseMidnight", t, func() {
		Convey("midnight is fraction 0.0", func() {
			So(TimeToFraction(BaseMidnight), ShouldEqual, 0.0)
		})
		Convey("noon is fraction 12.0", func() {
			So(TimeToFraction(BaseMidnight.Add(12*time.Hour)), ShouldEqual, 12.0)
		})
		Convey("08:30:00 is fraction 8.5", func() {
			So(TimeToFraction(BaseMidnight.Add(8*time.Hour+30*time.Minute)), ShouldEqual, 8.5)
		})
		Convey("01:00:30 keeps seconds precision", func() {
			got := TimeToFraction(BaseMidnight.Add(1*time.Hour + 30*time.Second))
			So(got, ShouldAlmostEqual, 1.0+30.0/3600.0, 1e-9)
		})
		Convey("14:45:30 is a combined hours/minutes/seconds fraction", func() {
			got := TimeToFraction(BaseMidnight.Add(14*time.Hour + 45*time.Minute + 30*time.Second))
			So(got, ShouldAlmostEqual, 14.0+45.0/60.0+30.0/3600.0, 1e-9)
		})
	})
}

func TestParseTimeHMS(t *testing.T) {
	Convey("Given strict HH:MM:SS input", t, func() {
		Convey("a valid time parses", func() {
			d, err := ParseTimeHMS("08:30:45")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 8*time.Hour+30*time.Minute+45*time.Second)
		})
		Convey("midnight parses to zero", func() {
			d, err := ParseTimeHMS("00:00:00")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 0)
		})
		Convey("an out-of-range hour is rejected", func() {
			_, err := ParseTimeHMS("25:00:00")
			So(err, ShouldNotBeNil)
		})
		Convey("an out-of-range minute is rejected", func() {
			_, err := ParseTimeHMS("12:60:00")
			So(err, ShouldNotBeNil)
		})
		Convey("an empty string is rejected", func() {
			_, err := ParseTimeHMS("")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given the flexible NIMBY Rails format", t, func() {
		Convey("two colon-separated parts mean minutes:seconds, not hours:minutes", func() {
			d, err := ParseTimeHMS("08:30")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 8*time.Minute+30*time.Second)
		})
		Convey("a single part is seconds only", func() {
			d, err := ParseTimeHMS("45")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 45*time.Second)
		})
		Convey("dot-separated two parts are minutes.seconds", func() {
			d, err := ParseTimeHMS("3.30")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 3*time.Minute+30*time.Second)
		})
		Convey("a trailing empty part is treated as zero", func() {
			d, err := ParseTimeHMS("5.15.")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 5*time.Hour+15*time.Minute)
		})
		Convey("all-empty trailing parts still count toward the 3-part form", func() {
			d, err := ParseTimeHMS("6..")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 6*time.Hour)
		})
		Convey("comma is an accepted separator", func() {
			d, err := ParseTimeHMS("1,2,3")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 1*time.Hour+2*time.Minute+3*time.Second)
		})
		Convey("semicolon is an accepted separator", func() {
			d, err := ParseTimeHMS("1;2;3")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 1*time.Hour+2*time.Minute+3*time.Second)
		})
	})
}

func TestFormatDurationHMS(t *testing.T) {
	Convey("Given a duration", t, func() {
		Convey("it renders as zero-padded HH:MM:SS", func() {
			So(FormatDurationHMS(1*time.Hour+2*time.Minute+3*time.Second), ShouldEqual, "01:02:03")
		})
		Convey("zero renders as 00:00:00", func() {
			So(FormatDurationHMS(0), ShouldEqual, "00:00:00")
		})
	})
}

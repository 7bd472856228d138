package simulation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BaseDate anchors day 0 for every timestamp the engine handles. Journeys,
// conflicts and station crossings are all expressed as time.Time values
// relative to this date.
var BaseDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// BaseMidnight is 00:00:00 on BaseDate.
var BaseMidnight = BaseDate

// DefaultDepartureTime is the default clock time offered to new manual
// departures in callers that build lines interactively.
var DefaultDepartureTime = BaseDate.Add(8 * time.Hour)

// GenerationEndHour is the fallback bound for automatic departure/journey
// generation when a line has no usable LastDeparture: no departure later
// than GenerationEndHour:00:00 of its day is generated.
const GenerationEndHour = 22

// TimeToFraction returns hours since BaseMidnight, decomposed through
// integer seconds and milliseconds so that multi-day spans don't lose
// precision the way a direct millisecond-to-float64 cast would.
func TimeToFraction(t time.Time) float64 {
	d := t.Sub(BaseMidnight)

	totalSeconds := int64(d / time.Second)
	hours := totalSeconds / 3600
	remainingSeconds := totalSeconds % 3600
	minutes := remainingSeconds / 60
	seconds := remainingSeconds % 60

	totalMillis := d.Milliseconds()
	milliseconds := totalMillis % 1000

	return float64(hours) + float64(minutes)/60.0 + float64(seconds)/3600.0 + float64(milliseconds)/3_600_000.0
}

// ParseFlexibleTime accepts the NIMBY Rails style flexible time string:
// separators '.', ',', ':', ';', empty parts treated as zero, and the part
// count determining meaning (1 => seconds, 2 => minutes:seconds,
// 3 => hours:minutes:seconds). It returns (hours, minutes, seconds, ok).
func ParseFlexibleTime(input string) (hours, minutes, seconds int64, ok bool) {
	if strings.TrimSpace(input) == "" {
		return 0, 0, 0, false
	}

	// strings.FieldsFunc would drop empty fields, which breaks the
	// "empty part = 0" contract (e.g. "6.." must parse as 3 parts:
	// "6", "", ""), so split manually instead.
	parts := splitKeepEmpty(input, ".,:;")

	parseOrZero := func(s string) (int64, bool) {
		if s == "" {
			return 0, true
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return 0, 0, 0, false
		}
		s, valid := parseOrZero(parts[0])
		if !valid {
			return 0, 0, 0, false
		}
		return 0, 0, s, true
	case 2:
		m, valid1 := parseOrZero(parts[0])
		s, valid2 := parseOrZero(parts[1])
		if !valid1 || !valid2 {
			return 0, 0, 0, false
		}
		return 0, m, s, true
	case 3:
		h, valid1 := parseOrZero(parts[0])
		m, valid2 := parseOrZero(parts[1])
		s, valid3 := parseOrZero(parts[2])
		if !valid1 || !valid2 || !valid3 {
			return 0, 0, 0, false
		}
		return h, m, s, true
	default:
		return 0, 0, 0, false
	}
}

// splitKeepEmpty splits s on any rune in seps, preserving empty fields
// (unlike strings.FieldsFunc, which discards them).
func splitKeepEmpty(s string, seps string) []string {
	isSep := func(r rune) bool {
		return strings.ContainsRune(seps, r)
	}
	var parts []string
	start := 0
	for i, r := range s {
		if isSep(r) {
			parts = append(parts, s[start:i])
			start = i + len(string(r))
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// ParseTimeHMS parses s as a flexible time (see ParseFlexibleTime), falling
// back to strict "15:04:05" on failure. Range validation rejects
// hours >= 24 and minutes/seconds >= 60.
func ParseTimeHMS(s string) (time.Duration, error) {
	if h, m, sec, ok := ParseFlexibleTime(s); ok {
		if h >= 0 && h < 24 && m >= 0 && m < 60 && sec >= 0 && sec < 60 {
			return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
		}
	}

	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
}

// FormatDurationHMS renders d as "HH:MM:SS".
func FormatDurationHMS(d time.Duration) string {
	secs := int64(d / time.Second)
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

package simulation

import "time"

// ConflictType classifies a detected conflict (spec.md §3, §4.5).
type ConflictType int

const (
	HeadOn ConflictType = iota
	Overtaking
	BlockViolation
	PlatformViolation
)

func (t ConflictType) String() string {
	switch t {
	case HeadOn:
		return "HeadOn"
	case Overtaking:
		return "Overtaking"
	case BlockViolation:
		return "BlockViolation"
	case PlatformViolation:
		return "PlatformViolation"
	default:
		return "Unknown"
	}
}

// TimeWindow is a (start, end) pair, used for segment/platform occupancy
// windows attached to a Conflict.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Conflict is one detected interaction between two journeys (spec.md §3).
type Conflict struct {
	Time         time.Time
	Position     float64 // 0..1 along the lower->higher station ordinal span
	Station1Idx  int
	Station2Idx  int
	Journey1ID   string
	Journey2ID   string
	Type         ConflictType
	Segment1Times *TimeWindow
	Segment2Times *TimeWindow
	PlatformIdx  *int
	EdgeIndex    *EdgeIndex // nil only for PlatformViolation
	TimingUncertain bool

	// Actual1Times/Actual2Times carry un-buffered arrival/departure windows,
	// populated only for PlatformViolation conflicts.
	Actual1Times *TimeWindow
	Actual2Times *TimeWindow
}

// StationCrossing is a space-time intersection between two journeys that
// resolves within the station margin of a station endpoint: a near-miss,
// not a conflict.
type StationCrossing struct {
	Time       time.Time
	StationIdx int
	Journey1ID string
	Journey2ID string
}

// MaxConflicts is the hard cap on emitted conflicts (spec.md §4.5 step 5,
// §9 Design Note): a timetable with tens of thousands of conflicts is
// unusable for human review, so detection stops early and callers surface
// a "more not shown" signal.
const MaxConflicts = 9999

type detectionResults struct {
	conflicts        []Conflict
	stationCrossings []StationCrossing
}

func (r *detectionResults) capReached() bool {
	return len(r.conflicts) >= MaxConflicts
}

package model

import "time"

// Holds all external facing types and constants.

const (
	// Maximum number of departures shown per stop/route pair, and
	// per journey group.
	DisplayWindow = 3

	NoteNextAvailable = "No more buses today — showing next available departures"
	NoteTomorrow      = "No more buses today — showing tomorrow's first departures"
	NoteSampleData    = "Using sample data — real-time data unavailable"
	NoteUnavailable   = "Unable to fetch schedule data"
)

// Identifies one upstream query target.
type StopRoutePair struct {
	StopID string `json:"stopId" yaml:"stop"`
	Route  string `json:"route" yaml:"route"`
}

// Key used by the cache for this pair.
func (p StopRoutePair) Key() string {
	return p.StopID + "-" + p.Route
}

// A single departure. Time is local wall clock on the form HH:MM.
//
// NextDay is set for departures on the calendar day after the
// resolution date, i.e. "(+1 day)".
type Schedule struct {
	Time        string `json:"time"`
	Destination string `json:"destination,omitempty"`
	Delay       int    `json:"delaySeconds,omitempty"`
	Realtime    bool   `json:"isRealtime,omitempty"`
	NextDay     bool   `json:"nextDay,omitempty"`
}

// Minutes since midnight of the resolution date. Next day departures
// sort after all same day departures. Malformed times sort last.
func (s Schedule) SortKey() int {
	m := TimeToMinutes(s.Time)
	if m == MinutesInfinity {
		return m
	}
	if s.NextDay {
		m += MinutesPerDay
	}
	return m
}

// The result of resolving one StopRoutePair for one date. Schedules
// is sorted by time and holds at most DisplayWindow entries.
type ScheduleResolution struct {
	StopID    string     `json:"stop"`
	Route     string     `json:"route"`
	Date      string     `json:"date"`
	Schedules []Schedule `json:"schedules"`
	SourceURL string     `json:"url"`
	Note      string     `json:"note,omitempty"`
}

// A user pinned journey. One group may reference several pairs,
// e.g. two competing routes toward the same destination.
type JourneyGroup struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Stops       []StopRoutePair `json:"stops" yaml:"stops"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
}

// A departure in a merged group listing, tagged with its origin.
type MergedDeparture struct {
	Schedule Schedule `json:"schedule"`
	StopID   string   `json:"stopId"`
	Route    string   `json:"route"`
}

// Departures for one journey group.
type GroupDepartures struct {
	Group      JourneyGroup      `json:"group"`
	Departures []MergedDeparture `json:"departures"`
}

// Result of refreshing every pinned group.
type Board struct {
	Date      string            `json:"date"`
	Groups    []GroupDepartures `json:"groups"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// A raw arrival record as produced by an upstream source.
//
// Times are seconds since midnight of the requested service date,
// and may exceed 24h for trips running past midnight.
type Arrival struct {
	Route     string
	Scheduled int
	Estimated int
	Realtime  bool
	Delay     int
	Headsign  string
	Passed    bool
}

// Effective departure time in seconds since midnight.
func (a Arrival) Effective() int {
	if a.Realtime {
		return a.Estimated
	}
	return a.Scheduled
}

// An entry in a static per-stop sample timetable.
type SampleDeparture struct {
	StopID      string
	Route       string
	Time        string
	Destination string
}

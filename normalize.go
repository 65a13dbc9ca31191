package mbus

import (
	"sort"

	"github.com/digitaljerry/mbus/model"
)

type candidate struct {
	minutes  int
	schedule model.Schedule
}

// Turns raw arrival records into at most DisplayWindow displayable
// schedules, sorted by effective time.
//
// nowMinutes is the current time of day relative to the resolution
// date. Records at or before it are considered departed. If none
// remain, the earliest records are shown instead along with an
// explanatory note. Sources serving only the current day are assumed
// to list tomorrow's timetable in that case.
//
// Returns no schedules if no record matches the route.
func Normalize(
	arrivals []model.Arrival,
	route string,
	nowMinutes int,
	todayOnly bool,
) ([]model.Schedule, string) {
	all := []candidate{}
	live := []candidate{}

	for _, a := range arrivals {
		if a.Route != route {
			continue
		}

		seconds := a.Effective()
		c := candidate{
			minutes: seconds / 60,
			schedule: model.Schedule{
				Time:        model.SecondsToTime(seconds),
				Destination: a.Headsign,
				Delay:       a.Delay,
				Realtime:    a.Realtime,
				NextDay:     seconds >= model.SecondsPerDay,
			},
		}
		if seconds < 0 {
			c.minutes = 0
		}

		all = append(all, c)
		if !a.Passed {
			live = append(live, c)
		}
	}

	if todayOnly {
		return window(live, all, nowMinutes)
	}
	return window(live, nil, nowMinutes)
}

// Same as Normalize, but for static sample timetables. These repeat
// every day, so when nothing departs later today, tomorrow's first
// departures are shown.
func NormalizeSamples(
	samples []model.SampleDeparture,
	route string,
	nowMinutes int,
) []model.Schedule {
	cands := []candidate{}
	for _, s := range samples {
		if s.Route != route {
			continue
		}
		cands = append(cands, candidate{
			minutes: model.TimeToMinutes(s.Time),
			schedule: model.Schedule{
				Time:        s.Time,
				Destination: s.Destination,
			},
		})
	}

	schedules, _ := window(cands, cands, nowMinutes)
	return schedules
}

// Picks the displayed window out of live candidates.
//
// If no live candidate departs after nowMinutes and rollover is
// non-nil, the earliest rollover candidates are returned flagged as
// next day. Otherwise the earliest live candidates are returned.
func window(live []candidate, rollover []candidate, nowMinutes int) ([]model.Schedule, string) {
	sortCandidates(live)

	future := []model.Schedule{}
	for _, c := range live {
		if c.minutes > nowMinutes {
			// Malformed times sort last, and alone don't count
			// as upcoming departures.
			if len(future) == 0 && c.minutes == model.MinutesInfinity {
				break
			}
			future = append(future, c.schedule)
			if len(future) == model.DisplayWindow {
				break
			}
		}
	}
	if len(future) > 0 {
		return future, ""
	}

	// Malformed times can't be placed on another day.
	if rollover != nil {
		rollover = wellFormed(rollover)
		if len(rollover) == 0 {
			return []model.Schedule{}, ""
		}
		sortCandidates(rollover)
		schedules := []model.Schedule{}
		for _, c := range head(rollover) {
			s := c.schedule
			s.NextDay = true
			schedules = append(schedules, s)
		}
		return schedules, model.NoteTomorrow
	}

	live = wellFormed(live)
	if len(live) == 0 {
		return []model.Schedule{}, ""
	}

	schedules := []model.Schedule{}
	for _, c := range head(live) {
		schedules = append(schedules, c.schedule)
	}
	return schedules, model.NoteNextAvailable
}

func wellFormed(cands []candidate) []candidate {
	out := []candidate{}
	for _, c := range cands {
		if c.minutes != model.MinutesInfinity {
			out = append(out, c)
		}
	}
	return out
}

func sortCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].minutes < cands[j].minutes
	})
}

func head(cands []candidate) []candidate {
	if len(cands) > model.DisplayWindow {
		return cands[:model.DisplayWindow]
	}
	return cands
}

package mbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/digitaljerry/mbus/metrics"
	"github.com/digitaljerry/mbus/model"
	"github.com/digitaljerry/mbus/source"
)

const DateFormat = "2006-01-02"

var ErrBadRequest = errors.New("bad request")

// A request for the schedule of one stop/route pair. An empty Date
// means the current service day.
type Query struct {
	StopID string
	Route  string
	Date   string
}

func (q Query) Validate() error {
	if strings.TrimSpace(q.StopID) == "" {
		return fmt.Errorf("%w: stop is required", ErrBadRequest)
	}
	if strings.TrimSpace(q.Route) == "" {
		return fmt.Errorf("%w: route is required", ErrBadRequest)
	}
	return ValidateDate(q.Date)
}

// Checks that date is empty or on the form YYYY-MM-DD.
func ValidateDate(date string) error {
	if date == "" {
		return nil
	}
	_, err := time.Parse(DateFormat, date)
	if err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD: %q", ErrBadRequest, date)
	}
	return nil
}

// Resolver produces schedules for stop/route pairs.
//
// Each resolution is served from cache when possible, fetched live
// otherwise, and degrades to sample data or an empty result with an
// explanatory note when the upstream fails. Resolving never fails.
type Resolver struct {
	Source   source.Source
	Cache    *Cache
	Metrics  *metrics.Collector
	Location *time.Location

	// Static per stop timetables, used when the upstream is down.
	Samples map[string][]model.SampleDeparture

	// Can be overridden to control time during tests.
	TimeNow func() time.Time
}

// Creates a Resolver for the given source. cache may be nil, in which
// case every resolution goes to the upstream.
func NewResolver(src source.Source, cache *Cache) *Resolver {
	return &Resolver{
		Source:   src,
		Cache:    cache,
		Location: time.Local,
		Samples:  map[string][]model.SampleDeparture{},
		TimeNow:  time.Now,
	}
}

func (r *Resolver) now() time.Time {
	now := time.Now
	if r.TimeNow != nil {
		now = r.TimeNow
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// Validates q and resolves it. Only fails with ErrBadRequest.
func (r *Resolver) Query(ctx context.Context, q Query) (model.ScheduleResolution, error) {
	err := q.Validate()
	if err != nil {
		return model.ScheduleResolution{}, err
	}
	return r.Resolve(ctx, strings.TrimSpace(q.StopID), strings.TrimSpace(q.Route), q.Date), nil
}

// Resolves the next departures of route at stopID on date
// (YYYY-MM-DD, empty for today).
func (r *Resolver) Resolve(ctx context.Context, stopID string, route string, date string) model.ScheduleResolution {
	start := time.Now()
	defer func() {
		r.Metrics.ObserveResolve(time.Since(start))
	}()

	now := r.now()
	day, dateStr := r.serviceDate(date, now)
	nowMinutes := relativeMinutes(day, now)

	logger := log.With().Str("stop", stopID).Str("route", route).Str("date", dateStr).Logger()

	if r.Cache != nil {
		entry, ok := r.Cache.Get(stopID, route, now)
		if ok && entry.Payload.Date == dateStr {
			r.Metrics.CacheHit()
			logger.Debug().Msg("Serving cached schedule")
			return entry.Payload
		}
	}
	r.Metrics.CacheMiss()

	arrivals, err := r.Source.FetchArrivals(ctx, stopID, route, day)
	if err == nil {
		schedules, note := Normalize(arrivals, route, nowMinutes, r.Source.TodayOnly())
		if len(schedules) == 0 {
			err = fmt.Errorf("%w: no arrivals for route %s", source.ErrUpstreamEmpty, route)
		} else {
			r.Metrics.Upstream(r.Source.Name(), "ok")

			resolution := model.ScheduleResolution{
				StopID:    stopID,
				Route:     route,
				Date:      dateStr,
				Schedules: schedules,
				SourceURL: r.Source.SourceURL(stopID, route),
				Note:      note,
			}

			if r.Cache != nil {
				// Fresh age counts from when the upstream answered.
				err = r.Cache.Put(stopID, route, resolution, r.now())
				if err != nil {
					logger.Warn().Err(err).Msg("Failed to cache schedule")
				}
			}

			logger.Debug().Int("schedules", len(schedules)).Msg("Resolved live schedule")
			return resolution
		}
	}

	outcome := "unavailable"
	if errors.Is(err, source.ErrUpstreamEmpty) {
		outcome = "empty"
	}
	r.Metrics.Upstream(r.Source.Name(), outcome)
	logger.Warn().Err(err).Msg("Upstream fetch failed")

	if r.Cache != nil {
		err = r.Cache.Invalidate(stopID, route)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to invalidate cache")
		}
	}

	return r.fallback(stopID, route, dateStr, nowMinutes)
}

// Degraded resolution built from sample data, or an empty one if no
// samples exist for the pair. Never cached.
func (r *Resolver) fallback(stopID string, route string, date string, nowMinutes int) model.ScheduleResolution {
	resolution := model.ScheduleResolution{
		StopID:    stopID,
		Route:     route,
		Date:      date,
		Schedules: []model.Schedule{},
		SourceURL: r.Source.SourceURL(stopID, route),
		Note:      model.NoteUnavailable,
	}

	schedules := NormalizeSamples(r.Samples[stopID], route, nowMinutes)
	if len(schedules) > 0 {
		resolution.Schedules = schedules
		resolution.Note = model.NoteSampleData
		r.Metrics.Fallback("sample")
		return resolution
	}

	r.Metrics.Fallback("empty")
	return resolution
}

// Parses date in the resolver's location. Empty or invalid dates
// resolve to the day of now.
func (r *Resolver) serviceDate(date string, now time.Time) (time.Time, string) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date == "" {
		return today, today.Format(DateFormat)
	}

	day, err := time.ParseInLocation(DateFormat, date, now.Location())
	if err != nil {
		log.Warn().Str("date", date).Msg("Invalid date, using today")
		return today, today.Format(DateFormat)
	}
	return day, day.Format(DateFormat)
}

// Current time of day in minutes, relative to the service day. Every
// departure of a future day lies ahead, and none of a past day.
func relativeMinutes(day time.Time, now time.Time) int {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := now.Date()
	dayKey := y1*10000 + int(m1)*100 + d1
	nowKey := y2*10000 + int(m2)*100 + d2

	if dayKey > nowKey {
		return -1
	}
	if dayKey < nowKey {
		return 2 * model.MinutesPerDay
	}
	return model.NowMinutes(now)
}

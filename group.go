package mbus

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/pool"

	"github.com/digitaljerry/mbus/model"
)

// Resolves every pair in a journey group concurrently, and merges the
// results into one listing of at most DisplayWindow departures.
//
// A failing pair never hides the departures of other pairs.
func (r *Resolver) ResolveGroup(ctx context.Context, group model.JourneyGroup, date string) []model.MergedDeparture {
	mapper := iter.Mapper[model.StopRoutePair, model.ScheduleResolution]{
		MaxGoroutines: len(group.Stops),
	}
	resolutions := mapper.Map(group.Stops, func(pair *model.StopRoutePair) model.ScheduleResolution {
		return r.Resolve(ctx, pair.StopID, pair.Route, date)
	})

	return MergeDepartures(resolutions)
}

// Merges resolutions into a single listing sorted by departure time.
// Ties keep the order of resolutions. Malformed times sort last.
func MergeDepartures(resolutions []model.ScheduleResolution) []model.MergedDeparture {
	merged := []model.MergedDeparture{}
	for _, res := range resolutions {
		for _, s := range res.Schedules {
			merged = append(merged, model.MergedDeparture{
				Schedule: s,
				StopID:   res.StopID,
				Route:    res.Route,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Schedule.SortKey() < merged[j].Schedule.SortKey()
	})

	if len(merged) > model.DisplayWindow {
		merged = merged[:model.DisplayWindow]
	}
	return merged
}

// Resolves all groups concurrently. Groups are returned in the order
// given.
func (r *Resolver) Refresh(ctx context.Context, groups []model.JourneyGroup, date string) model.Board {
	start := time.Now()
	_, dateStr := r.serviceDate(date, r.now())

	results := make([]model.GroupDepartures, len(groups))

	p := pool.New()
	for i, group := range groups {
		i, group := i, group
		p.Go(func() {
			results[i] = model.GroupDepartures{
				Group:      group,
				Departures: r.ResolveGroup(ctx, group, dateStr),
			}
		})
	}
	p.Wait()

	updatedAt := r.now()
	r.Metrics.ObserveRefresh(time.Since(start), updatedAt)
	log.Info().Int("groups", len(groups)).Str("date", dateStr).Dur("took", time.Since(start)).Msg("Refreshed board")

	return model.Board{
		Date:      dateStr,
		Groups:    results,
		UpdatedAt: updatedAt,
	}
}

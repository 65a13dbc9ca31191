package mbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitaljerry/mbus"
	"github.com/digitaljerry/mbus/model"
	"github.com/digitaljerry/mbus/source"
	tu "github.com/digitaljerry/mbus/testutil"
)

type departure struct {
	Time   string
	StopID string
	Route  string
}

func departures(merged []model.MergedDeparture) []departure {
	out := []departure{}
	for _, m := range merged {
		tm := m.Schedule.Time
		if m.Schedule.NextDay {
			tm += "+1"
		}
		out = append(out, departure{tm, m.StopID, m.Route})
	}
	return out
}

func TestResolveGroupMerges(t *testing.T) {
	f := newFixture(t, "2024-03-01 08:00:00")
	f.src.Arrivals["A"] = []model.Arrival{
		tu.Scheduled("A", "08:10", "Center"),
		tu.Scheduled("A", "08:40", "Center"),
	}
	f.src.Arrivals["B"] = []model.Arrival{
		tu.Scheduled("B", "08:05", "Center"),
		tu.Scheduled("B", "08:20", "Center"),
		tu.Scheduled("B", "08:50", "Center"),
	}

	group := model.JourneyGroup{
		ID:   "to-work",
		Name: "To work",
		Stops: []model.StopRoutePair{
			{StopID: "A", Route: "A"},
			{StopID: "B", Route: "B"},
		},
	}

	merged := f.resolver.ResolveGroup(context.Background(), group, "")
	assert.Equal(t, []departure{
		{"08:05", "B", "B"},
		{"08:10", "A", "A"},
		{"08:20", "B", "B"},
	}, departures(merged))
}

func TestResolveGroupPartialFailure(t *testing.T) {
	f := newFixture(t, "2024-03-01 08:00:00")
	f.src.Errors["A"] = source.ErrUpstreamUnavailable
	f.src.Arrivals["B"] = []model.Arrival{
		tu.Scheduled("B", "08:05", "Center"),
	}

	group := model.JourneyGroup{
		ID: "to-work",
		Stops: []model.StopRoutePair{
			{StopID: "A", Route: "A"},
			{StopID: "B", Route: "B"},
		},
	}

	merged := f.resolver.ResolveGroup(context.Background(), group, "")
	assert.Equal(t, []departure{{"08:05", "B", "B"}}, departures(merged))

	// Nothing at all
	f.src.Errors["B"] = source.ErrUpstreamUnavailable
	require.NoError(t, f.resolver.Cache.Clear())
	merged = f.resolver.ResolveGroup(context.Background(), group, "")
	assert.Equal(t, []model.MergedDeparture{}, merged)
}

func TestResolveGroupConcurrent(t *testing.T) {
	f := newFixture(t, "2024-03-01 08:00:00")
	f.src.Latency = 100 * time.Millisecond

	group := model.JourneyGroup{ID: "everywhere"}
	for _, stop := range []string{"A", "B", "C", "D"} {
		f.src.Arrivals[stop] = []model.Arrival{tu.Scheduled(stop, "08:10", "Center")}
		group.Stops = append(group.Stops, model.StopRoutePair{StopID: stop, Route: stop})
	}

	start := time.Now()
	merged := f.resolver.ResolveGroup(context.Background(), group, "")
	took := time.Since(start)

	assert.Equal(t, 3, len(merged))
	assert.Less(t, took, 250*time.Millisecond)
	for _, stop := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, 1, f.src.Calls(stop))
	}
}

func TestMergeDepartures(t *testing.T) {
	merged := mbus.MergeDepartures([]model.ScheduleResolution{
		{
			StopID: "1",
			Route:  "G1",
			Schedules: []model.Schedule{
				{Time: "garbage"},
				{Time: "00:05", NextDay: true},
				{Time: "23:58"},
			},
		},
		{
			StopID: "2",
			Route:  "G2",
			Schedules: []model.Schedule{
				{Time: "23:58"},
			},
		},
		{
			StopID:    "3",
			Route:     "G3",
			Schedules: []model.Schedule{},
		},
	})

	// Ties keep input order, next day after same day, malformed
	// last
	assert.Equal(t, []departure{
		{"23:58", "1", "G1"},
		{"23:58", "2", "G2"},
		{"00:05+1", "1", "G1"},
	}, departures(merged))

	merged = mbus.MergeDepartures([]model.ScheduleResolution{
		{StopID: "1", Route: "G1", Schedules: []model.Schedule{{Time: "garbage"}, {Time: "08:00"}}},
	})
	assert.Equal(t, []departure{
		{"08:00", "1", "G1"},
		{"garbage", "1", "G1"},
	}, departures(merged))

	assert.Equal(t, []model.MergedDeparture{}, mbus.MergeDepartures(nil))
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, "2024-03-01 08:00:00")
	f.src.Arrivals["A"] = []model.Arrival{tu.Scheduled("A", "08:10", "Center")}
	f.src.Arrivals["B"] = []model.Arrival{tu.Scheduled("B", "08:05", "Center")}
	f.src.Arrivals["C"] = []model.Arrival{tu.Scheduled("C", "08:30", "Airport")}
	f.src.Latency = 10 * time.Millisecond

	groups := []model.JourneyGroup{
		{ID: "g1", Name: "To work", Stops: []model.StopRoutePair{{StopID: "A", Route: "A"}, {StopID: "B", Route: "B"}}},
		{ID: "g2", Name: "Airport", Stops: []model.StopRoutePair{{StopID: "C", Route: "C"}}},
		{ID: "g3", Name: "Nothing"},
	}

	board := f.resolver.Refresh(context.Background(), groups, "")

	assert.Equal(t, "2024-03-01", board.Date)
	assert.True(t, f.clock.Now().Equal(board.UpdatedAt))
	require.Equal(t, 3, len(board.Groups))

	assert.Equal(t, "g1", board.Groups[0].Group.ID)
	assert.Equal(t, []departure{{"08:05", "B", "B"}, {"08:10", "A", "A"}}, departures(board.Groups[0].Departures))
	assert.Equal(t, "g2", board.Groups[1].Group.ID)
	assert.Equal(t, []departure{{"08:30", "C", "C"}}, departures(board.Groups[1].Departures))
	assert.Equal(t, "g3", board.Groups[2].Group.ID)
	assert.Equal(t, []model.MergedDeparture{}, board.Groups[2].Departures)

	// Second refresh is served from cache
	f.resolver.Refresh(context.Background(), groups, "")
	assert.Equal(t, 1, f.src.Calls("A"))
	assert.Equal(t, 1, f.src.Calls("C"))
}

package testutil

// Helpers and fakes for tests.

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digitaljerry/mbus/model"
	"github.com/digitaljerry/mbus/source"
	"github.com/digitaljerry/mbus/storage"
)

var Backends = []string{"memory", "sqlite"}

func BuildStorage(t testing.TB, backend string) storage.Storage {
	var s storage.Storage
	if backend == "memory" {
		s = storage.NewMemoryStorage()
	} else if backend == "sqlite" {
		sqlite, err := storage.NewSQLiteStorage()
		require.NoError(t, err)
		t.Cleanup(func() { sqlite.Close() })
		s = sqlite
	}
	require.NotEqual(t, nil, s, "unknown backend %q", backend)

	return s
}

// A Source serving canned arrivals, keyed by stop ID. Safe for
// concurrent use.
type FakeSource struct {
	Arrivals  map[string][]model.Arrival
	Errors    map[string]error
	WebURL    string
	Today     bool
	Latency   time.Duration
	SourceTag string

	// Called at the end of every fetch, if set.
	OnFetch func(stopID string)

	mu    sync.Mutex
	calls map[string]int
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		Arrivals: map[string][]model.Arrival{},
		Errors:   map[string]error{},
		WebURL:   "https://bus.example.com",
		calls:    map[string]int{},
	}
}

func (f *FakeSource) Name() string {
	if f.SourceTag == "" {
		return "fake"
	}
	return f.SourceTag
}

func (f *FakeSource) FetchArrivals(ctx context.Context, stopID string, route string, date time.Time) ([]model.Arrival, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[stopID]++
	arrivals := f.Arrivals[stopID]
	err := f.Errors[stopID]
	f.mu.Unlock()

	if f.Latency > 0 {
		select {
		case <-time.After(f.Latency):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", source.ErrUpstreamUnavailable, ctx.Err())
		}
	}

	if f.OnFetch != nil {
		f.OnFetch(stopID)
	}

	if err != nil {
		return nil, err
	}
	if len(arrivals) == 0 {
		return nil, source.ErrUpstreamEmpty
	}
	return append([]model.Arrival{}, arrivals...), nil
}

func (f *FakeSource) SourceURL(stopID string, route string) string {
	return fmt.Sprintf("%s/stops/%s?route=%s", f.WebURL, stopID, route)
}

func (f *FakeSource) TodayOnly() bool {
	return f.Today
}

// Number of fetches made for a stop.
func (f *FakeSource) Calls(stopID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stopID]
}

// A settable clock, for Resolver.TimeNow.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Arrival at HH:MM with no realtime data.
func Scheduled(route string, hhmm string, headsign string) model.Arrival {
	m, err := model.ParseClock(hhmm)
	if err != nil {
		panic(err)
	}
	return model.Arrival{
		Route:     route,
		Scheduled: m * 60,
		Estimated: m * 60,
		Headsign:  headsign,
	}
}

// Arrival scheduled at HH:MM, estimated delay seconds later.
func Delayed(route string, hhmm string, headsign string, delay int) model.Arrival {
	a := Scheduled(route, hhmm, headsign)
	a.Estimated += delay
	a.Delay = delay
	a.Realtime = true
	return a
}

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/digitaljerry/mbus/model"
	"github.com/digitaljerry/mbus/parse"
)

// GTFS-realtime TripUpdates feed. The feed holds predictions for
// every stop in the network, so the whole feed is downloaded and
// filtered locally. Downloads are shared across stops for FeedTTL.
type GTFSRT struct {
	cfg Config
}

func (g *GTFSRT) Name() string {
	return KindGTFSRT
}

func (g *GTFSRT) TodayOnly() bool {
	return g.cfg.TodayOnly
}

func (g *GTFSRT) SourceURL(stopID string, route string) string {
	return g.cfg.stopPage(stopID, route)
}

func (g *GTFSRT) FetchArrivals(ctx context.Context, stopID string, route string, date time.Time) ([]model.Arrival, error) {
	body, err := g.cfg.get(ctx, g.cfg.BaseURL, g.cfg.FeedTTL)
	if err != nil {
		return nil, err
	}

	rt, err := parse.ParseRealtime(ctx, [][]byte{body})
	if err != nil {
		return nil, fmt.Errorf("%w: parsing feed: %w", ErrUpstreamUnavailable, err)
	}

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, g.cfg.Location)

	arrivals := []model.Arrival{}
	for _, u := range rt.UpdatesForStop(stopID) {
		offset := int(u.Time.In(g.cfg.Location).Sub(midnight) / time.Second)

		// Predictions for a previous service day
		if offset < 0 {
			continue
		}

		delay := int(u.Delay / time.Second)
		arrivals = append(arrivals, model.Arrival{
			Route:     u.RouteID,
			Headsign:  u.Headsign,
			Scheduled: offset - delay,
			Estimated: offset,
			Realtime:  true,
			Delay:     delay,
		})
	}

	if len(arrivals) == 0 {
		return nil, fmt.Errorf("%w: no predictions for stop %s", ErrUpstreamEmpty, stopID)
	}

	return arrivals, nil
}

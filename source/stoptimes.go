package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/digitaljerry/mbus/model"
)

// JSON arrivals API:
//
//	GET {base}/stops/{stop_id}/arrivals?date=YYYYMMDD
//
// Times are seconds since midnight of the service date.
type StopTimes struct {
	cfg Config
}

type stopTimesResponse struct {
	Stop     string             `json:"stop"`
	Arrivals []stopTimesArrival `json:"arrivals"`
}

type stopTimesArrival struct {
	Route              string `json:"route"`
	Headsign           string `json:"headsign"`
	ScheduledDeparture *int   `json:"scheduledDeparture"`
	RealtimeDeparture  *int   `json:"realtimeDeparture"`
	Realtime           bool   `json:"realtime"`
	DepartureDelay     int    `json:"departureDelay"`
	Passed             bool   `json:"passed"`
}

func (s *StopTimes) Name() string {
	return KindStopTimes
}

func (s *StopTimes) TodayOnly() bool {
	return s.cfg.TodayOnly
}

func (s *StopTimes) SourceURL(stopID string, route string) string {
	return s.cfg.stopPage(stopID, route)
}

func (s *StopTimes) arrivalsURL(stopID string, date time.Time) string {
	return fmt.Sprintf(
		"%s/stops/%s/arrivals?date=%s",
		strings.TrimSuffix(s.cfg.BaseURL, "/"),
		url.PathEscape(stopID),
		date.Format("20060102"),
	)
}

func (s *StopTimes) FetchArrivals(ctx context.Context, stopID string, route string, date time.Time) ([]model.Arrival, error) {
	u := s.arrivalsURL(stopID, date)

	body, err := s.cfg.get(ctx, u, 0)
	if err != nil {
		return nil, err
	}

	var resp stopTimesResponse
	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrUpstreamUnavailable, u, err)
	}

	arrivals := []model.Arrival{}
	for _, a := range resp.Arrivals {
		// A record without a scheduled time can't be placed
		if a.ScheduledDeparture == nil {
			continue
		}

		arrival := model.Arrival{
			Route:     a.Route,
			Headsign:  a.Headsign,
			Scheduled: *a.ScheduledDeparture,
			Estimated: *a.ScheduledDeparture,
			Delay:     a.DepartureDelay,
			Passed:    a.Passed,
		}
		if a.Realtime && a.RealtimeDeparture != nil {
			arrival.Realtime = true
			arrival.Estimated = *a.RealtimeDeparture
		}

		arrivals = append(arrivals, arrival)
	}

	if len(arrivals) == 0 {
		return nil, fmt.Errorf("%w: stop %s", ErrUpstreamEmpty, stopID)
	}

	return arrivals, nil
}

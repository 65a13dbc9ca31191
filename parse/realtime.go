package parse

import (
	"context"
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"
)

// Predicted event at a stop, taken from a GTFS-realtime TripUpdate.
type StopTimeUpdate struct {
	TripID   string
	RouteID  string
	Headsign string
	StopID   string
	Time     time.Time
	Delay    time.Duration
	Skipped  bool
}

// Contains the trip updates of one or more GTFS-realtime feeds.
type Realtime struct {
	// Timestamp of the feed. If loaded from multiple feeds, the
	// last one wins.
	Timestamp    uint64
	SkippedTrips map[string]bool
	Updates      []*StopTimeUpdate
}

func ParseRealtime(ctx context.Context, feeds [][]byte) (*Realtime, error) {
	rt := &Realtime{
		SkippedTrips: map[string]bool{},
		Updates:      []*StopTimeUpdate{},
	}

	for _, feed := range feeds {
		f := &gtfsproto.FeedMessage{}
		err := proto.Unmarshal(feed, f)
		if err != nil {
			return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
		}

		header := f.GetHeader()

		version := header.GetGtfsRealtimeVersion()
		if version != "2.0" && version != "1.0" {
			return nil, fmt.Errorf("version %s not supported", version)
		}

		if header.GetIncrementality() != gtfsproto.FeedHeader_FULL_DATASET {
			return nil, fmt.Errorf("feed incrementality %s not supported", header.GetIncrementality())
		}

		rt.Timestamp = header.GetTimestamp()

		for _, entity := range f.GetEntity() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			processTripUpdate(rt, entity.GetTripUpdate())
		}
	}

	return rt, nil
}

// Updates for the given stop, excluding cancelled trips and skipped
// stops.
func (rt *Realtime) UpdatesForStop(stopID string) []*StopTimeUpdate {
	updates := []*StopTimeUpdate{}
	for _, u := range rt.Updates {
		if u.StopID != stopID || u.Skipped || rt.SkippedTrips[u.TripID] {
			continue
		}
		updates = append(updates, u)
	}
	return updates
}

func processTripUpdate(rt *Realtime, tu *gtfsproto.TripUpdate) {
	if tu == nil || tu.GetTrip() == nil {
		return
	}
	trip := tu.GetTrip()

	switch trip.GetScheduleRelationship() {
	case gtfsproto.TripDescriptor_CANCELED:
		if trip.GetTripId() != "" {
			rt.SkippedTrips[trip.GetTripId()] = true
		}
		return
	case gtfsproto.TripDescriptor_SCHEDULED, gtfsproto.TripDescriptor_ADDED:
	default:
		// UNSCHEDULED and DUPLICATED are not supported
		return
	}

	headsign := ""
	if vehicle := tu.GetVehicle(); vehicle != nil {
		headsign = vehicle.GetLabel()
	}

	for _, stu := range tu.GetStopTimeUpdate() {
		if stu.GetStopId() == "" {
			continue
		}

		// Departure is what riders care about. Fall back to
		// arrival on the last stop of a trip.
		event := stu.GetDeparture()
		if event == nil {
			event = stu.GetArrival()
		}

		update := &StopTimeUpdate{
			TripID:   trip.GetTripId(),
			RouteID:  trip.GetRouteId(),
			Headsign: headsign,
			StopID:   stu.GetStopId(),
		}

		switch stu.GetScheduleRelationship() {
		case gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED:
			update.Skipped = true
		case gtfsproto.TripUpdate_StopTimeUpdate_NO_DATA:
			// Schedule applies, but we have no schedule
			// to apply. Nothing to show.
			continue
		}

		if event != nil {
			if event.GetTime() != 0 {
				update.Time = time.Unix(event.GetTime(), 0).UTC()
			}
			update.Delay = time.Duration(event.GetDelay()) * time.Second
		}

		if update.Time.IsZero() && !update.Skipped {
			// Without an absolute time there is no
			// static schedule to apply the delay to.
			continue
		}

		rt.Updates = append(rt.Updates, update)
	}
}

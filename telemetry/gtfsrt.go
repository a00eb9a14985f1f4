package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/railopt/model"
)

// FeedAdapter decodes GTFS-RT protobuf feeds into raw telemetry reports.
// VehiclePositions become RawPosition reports keyed by vehicle/trip id;
// TripUpdates stop-time events become RawStationEvent reports.
type FeedAdapter struct {
	httpClient *http.Client
}

// NewFeedAdapter creates an adapter with a default HTTP client.
func NewFeedAdapter(timeout time.Duration) *FeedAdapter {
	return &FeedAdapter{httpClient: &http.Client{Timeout: timeout}}
}

// FetchPositions fetches and decodes a VehiclePositions feed. An empty
// URL returns nil (allows optional feeds).
func (a *FeedAdapter) FetchPositions(url string) ([]RawPosition, error) {
	fm, err := a.fetchFeed(url)
	if err != nil || fm == nil {
		return nil, err
	}
	return DecodePositions(fm), nil
}

// FetchStationEvents fetches and decodes a TripUpdates feed into
// station-event reports.
func (a *FeedAdapter) FetchStationEvents(url string) ([]RawStationEvent, error) {
	fm, err := a.fetchFeed(url)
	if err != nil || fm == nil {
		return nil, err
	}
	return DecodeStationEvents(fm), nil
}

func (a *FeedAdapter) fetchFeed(url string) (*gtfsrtpb.FeedMessage, error) {
	if url == "" {
		return nil, nil
	}
	resp, err := a.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &fm); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return &fm, nil
}

// DecodePositions converts the VehiclePosition entities of a feed message.
func DecodePositions(fm *gtfsrtpb.FeedMessage) []RawPosition {
	var out []RawPosition
	for _, e := range fm.Entity {
		v := e.Vehicle
		if v == nil || v.Position == nil {
			continue
		}
		raw := RawPosition{
			Lat: float64(v.Position.GetLatitude()),
			Lon: float64(v.Position.GetLongitude()),
		}
		if v.Vehicle != nil && v.Vehicle.Id != nil {
			raw.TrainID = *v.Vehicle.Id
		} else if v.Trip != nil && v.Trip.TripId != nil {
			raw.TrainID = *v.Trip.TripId
		}
		if v.Position.Speed != nil {
			// GTFS-RT speed is m/s.
			raw.SpeedKmh = float64(*v.Position.Speed) * 3.6
		}
		if v.Position.Bearing != nil {
			raw.HeadingDeg = float64(*v.Position.Bearing)
		}
		if v.Timestamp != nil {
			raw.Timestamp = time.Unix(int64(*v.Timestamp), 0)
		}
		out = append(out, raw)
	}
	return out
}

// DecodeStationEvents converts TripUpdate stop-time updates into
// station-event reports. Only updates carrying an arrival or departure
// time are emitted; the delay is taken from the stop-time delay field.
func DecodeStationEvents(fm *gtfsrtpb.FeedMessage) []RawStationEvent {
	var out []RawStationEvent
	for _, e := range fm.Entity {
		tu := e.TripUpdate
		if tu == nil || tu.Trip == nil || tu.Trip.TripId == nil {
			continue
		}
		trainID := *tu.Trip.TripId
		for _, stu := range tu.StopTimeUpdate {
			if stu.StopId == nil {
				continue
			}
			raw := RawStationEvent{
				StationCode: *stu.StopId,
				TrainID:     trainID,
			}
			switch {
			case stu.Arrival != nil && stu.Arrival.Time != nil:
				raw.EventKind = model.EventArrival
				raw.Timestamp = time.Unix(*stu.Arrival.Time, 0)
				if stu.Arrival.Delay != nil {
					raw.DelayMinutes = int(*stu.Arrival.Delay) / 60
				}
			case stu.Departure != nil && stu.Departure.Time != nil:
				raw.EventKind = model.EventDeparture
				raw.Timestamp = time.Unix(*stu.Departure.Time, 0)
				if stu.Departure.Delay != nil {
					raw.DelayMinutes = int(*stu.Departure.Delay) / 60
				}
			default:
				continue
			}
			out = append(out, raw)
		}
	}
	return out
}

package parse

import (
	"encoding/json"
	"fmt"
	"iter"

	"github.com/spkg/bom"

	"github.com/trafiklab-tools/realtime/model"
	"github.com/trafiklab-tools/realtime/storage"
)

// Table receiving flattened departures. Column order matches
// DepartureRow.
var DeparturesSchema = storage.TableSchema{
	Name: "trafiklab_departures",
	Columns: []storage.Column{
		{Name: "response_timestamp", Type: storage.ColumnTypeText},
		{Name: "query_time", Type: storage.ColumnTypeText},
		{Name: "query_area_id", Type: storage.ColumnTypeText},
		{Name: "scheduled_time", Type: storage.ColumnTypeText},
		{Name: "realtime_time", Type: storage.ColumnTypeText},
		{Name: "delay_seconds", Type: storage.ColumnTypeBigInt},
		{Name: "canceled", Type: storage.ColumnTypeBool},
		{Name: "is_realtime", Type: storage.ColumnTypeBool},
		{Name: "route_name", Type: storage.ColumnTypeText},
		{Name: "route_designation", Type: storage.ColumnTypeText},
		{Name: "route_transport_mode_code", Type: storage.ColumnTypeBigInt},
		{Name: "route_transport_mode", Type: storage.ColumnTypeText},
		{Name: "route_direction", Type: storage.ColumnTypeText},
		{Name: "origin_stop_id", Type: storage.ColumnTypeText},
		{Name: "origin_stop_name", Type: storage.ColumnTypeText},
		{Name: "destination_stop_id", Type: storage.ColumnTypeText},
		{Name: "destination_stop_name", Type: storage.ColumnTypeText},
		{Name: "trip_id", Type: storage.ColumnTypeText},
		{Name: "trip_start_date", Type: storage.ColumnTypeText},
		{Name: "trip_technical_number", Type: storage.ColumnTypeBigInt},
		{Name: "agency_id", Type: storage.ColumnTypeText},
		{Name: "agency_name", Type: storage.ColumnTypeText},
		{Name: "agency_operator", Type: storage.ColumnTypeText},
		{Name: "stop_id", Type: storage.ColumnTypeText},
		{Name: "stop_name", Type: storage.ColumnTypeText},
		{Name: "stop_lat", Type: storage.ColumnTypeDouble},
		{Name: "stop_lon", Type: storage.ColumnTypeDouble},
	},
	PrimaryKey: []string{"trip_id", "scheduled_time"},
}

// Decodes a departures document. Fails with a *model.ParseError if
// the body isn't a JSON object or lacks the departures array.
func ParseResponse(body []byte) (*model.RawResponse, error) {
	body = bom.Clean(body)

	top := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, &model.ParseError{Err: fmt.Errorf("decoding response: %w", err)}
	}

	departures, found := top["departures"]
	if !found || string(departures) == "null" {
		return nil, &model.ParseError{Err: fmt.Errorf("response has no departures")}
	}

	doc := &model.RawResponse{}
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, &model.ParseError{Err: fmt.Errorf("decoding response: %w", err)}
	}

	return doc, nil
}

// Yields one DepartureRecord per entry in doc.Departures. Response
// metadata is copied into every record. Absent sub-objects and
// fields become nil.
//
// The sequence holds no state and can be iterated any number of
// times.
func FlattenDepartures(doc *model.RawResponse) iter.Seq[model.DepartureRecord] {
	return func(yield func(model.DepartureRecord) bool) {
		if doc == nil {
			return
		}

		for i := range doc.Departures {
			if !yield(flattenDeparture(doc, &doc.Departures[i])) {
				return
			}
		}
	}
}

func flattenDeparture(doc *model.RawResponse, d *model.Departure) model.DepartureRecord {
	return model.DepartureRecord{
		ResponseTimestamp: doc.Timestamp,
		QueryTime:         doc.Query.GetQueryTime(),
		QueryAreaID:       doc.Query.GetQuery(),

		ScheduledTime: d.Scheduled,
		RealtimeTime:  d.Realtime,
		DelaySeconds:  d.Delay,
		Canceled:      d.Canceled,
		IsRealtime:    d.IsRealtime,

		RouteName:              d.Route.GetName(),
		RouteDesignation:       d.Route.GetDesignation(),
		RouteTransportModeCode: d.Route.GetTransportModeCode(),
		RouteTransportMode:     d.Route.GetTransportMode(),
		RouteDirection:         d.Route.GetDirection(),

		OriginStopID:        d.Route.GetOrigin().GetID(),
		OriginStopName:      d.Route.GetOrigin().GetName(),
		DestinationStopID:   d.Route.GetDestination().GetID(),
		DestinationStopName: d.Route.GetDestination().GetName(),

		TripID:              d.Trip.GetTripID(),
		TripStartDate:       d.Trip.GetStartDate(),
		TripTechnicalNumber: d.Trip.GetTechnicalNumber(),

		AgencyID:       d.Agency.GetID(),
		AgencyName:     d.Agency.GetName(),
		AgencyOperator: d.Agency.GetOperator(),

		StopID:   d.Stop.GetID(),
		StopName: d.Stop.GetName(),
		StopLat:  d.Stop.GetLat(),
		StopLon:  d.Stop.GetLon(),
	}
}

// Row for DeparturesSchema.
func DepartureRow(rec model.DepartureRecord) storage.Row {
	return storage.Row{
		rec.ResponseTimestamp,
		rec.QueryTime,
		rec.QueryAreaID,
		rec.ScheduledTime,
		rec.RealtimeTime,
		rec.DelaySeconds,
		rec.Canceled,
		rec.IsRealtime,
		rec.RouteName,
		rec.RouteDesignation,
		rec.RouteTransportModeCode,
		rec.RouteTransportMode,
		rec.RouteDirection,
		rec.OriginStopID,
		rec.OriginStopName,
		rec.DestinationStopID,
		rec.DestinationStopName,
		rec.TripID,
		rec.TripStartDate,
		rec.TripTechnicalNumber,
		rec.AgencyID,
		rec.AgencyName,
		rec.AgencyOperator,
		rec.StopID,
		rec.StopName,
		rec.StopLat,
		rec.StopLon,
	}
}

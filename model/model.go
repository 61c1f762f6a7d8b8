package model

import (
	"time"
)

// Holds all external facing types and constants.

const (
	// Area queried when none is given. Göteborg Centralstation.
	DefaultAreaID = "740000002"

	// Minute resolution layout used by the departures endpoint.
	WindowTimeLayout = "2006-01-02T15:04"
)

// Identifies the departure window to request. A nil When selects
// the current 60 minute window.
type QueryWindow struct {
	AreaID string
	When   *time.Time
}

// Area returns the AreaID, or DefaultAreaID if blank.
func (q QueryWindow) Area() string {
	if q.AreaID == "" {
		return DefaultAreaID
	}
	return q.AreaID
}

// The departures document as returned by the Realtime Timetables
// API. Every nested object is optional.
type RawResponse struct {
	Timestamp  *string     `json:"timestamp"`
	Query      *Query      `json:"query"`
	Departures []Departure `json:"departures"`
}

type Query struct {
	QueryTime *string `json:"queryTime"`
	Query     *string `json:"query"`
}

type Departure struct {
	Scheduled  *string `json:"scheduled"`
	Realtime   *string `json:"realtime"`
	Delay      *int64  `json:"delay"`
	Canceled   *bool   `json:"canceled"`
	IsRealtime *bool   `json:"is_realtime"`
	Route      *Route  `json:"route"`
	Trip       *Trip   `json:"trip"`
	Agency     *Agency `json:"agency"`
	Stop       *Stop   `json:"stop"`
}

type Route struct {
	Name              *string  `json:"name"`
	Designation       *string  `json:"designation"`
	TransportModeCode *int64   `json:"transport_mode_code"`
	TransportMode     *string  `json:"transport_mode"`
	Direction         *string  `json:"direction"`
	Origin            *StopRef `json:"origin"`
	Destination       *StopRef `json:"destination"`
}

// Origin or destination of a route.
type StopRef struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

type Trip struct {
	TripID          *string `json:"trip_id"`
	StartDate       *string `json:"start_date"`
	TechnicalNumber *int64  `json:"technical_number"`
}

type Agency struct {
	ID       *string `json:"id"`
	Name     *string `json:"name"`
	Operator *string `json:"operator"`
}

// The physical stop where a departure happens.
type Stop struct {
	ID   *string  `json:"id"`
	Name *string  `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

// The accessors below are nil-safe, so that a missing sub-object
// yields nil for every field it would have supplied.

func (q *Query) GetQueryTime() *string {
	if q == nil {
		return nil
	}
	return q.QueryTime
}

func (q *Query) GetQuery() *string {
	if q == nil {
		return nil
	}
	return q.Query
}

func (r *Route) GetName() *string {
	if r == nil {
		return nil
	}
	return r.Name
}

func (r *Route) GetDesignation() *string {
	if r == nil {
		return nil
	}
	return r.Designation
}

func (r *Route) GetTransportModeCode() *int64 {
	if r == nil {
		return nil
	}
	return r.TransportModeCode
}

func (r *Route) GetTransportMode() *string {
	if r == nil {
		return nil
	}
	return r.TransportMode
}

func (r *Route) GetDirection() *string {
	if r == nil {
		return nil
	}
	return r.Direction
}

func (r *Route) GetOrigin() *StopRef {
	if r == nil {
		return nil
	}
	return r.Origin
}

func (r *Route) GetDestination() *StopRef {
	if r == nil {
		return nil
	}
	return r.Destination
}

func (s *StopRef) GetID() *string {
	if s == nil {
		return nil
	}
	return s.ID
}

func (s *StopRef) GetName() *string {
	if s == nil {
		return nil
	}
	return s.Name
}

func (t *Trip) GetTripID() *string {
	if t == nil {
		return nil
	}
	return t.TripID
}

func (t *Trip) GetStartDate() *string {
	if t == nil {
		return nil
	}
	return t.StartDate
}

func (t *Trip) GetTechnicalNumber() *int64 {
	if t == nil {
		return nil
	}
	return t.TechnicalNumber
}

func (a *Agency) GetID() *string {
	if a == nil {
		return nil
	}
	return a.ID
}

func (a *Agency) GetName() *string {
	if a == nil {
		return nil
	}
	return a.Name
}

func (a *Agency) GetOperator() *string {
	if a == nil {
		return nil
	}
	return a.Operator
}

func (s *Stop) GetID() *string {
	if s == nil {
		return nil
	}
	return s.ID
}

func (s *Stop) GetName() *string {
	if s == nil {
		return nil
	}
	return s.Name
}

func (s *Stop) GetLat() *float64 {
	if s == nil {
		return nil
	}
	return s.Lat
}

func (s *Stop) GetLon() *float64 {
	if s == nil {
		return nil
	}
	return s.Lon
}

// A single departure, flattened for analytics. Logically keyed by
// (TripID, ScheduledTime). A nil field is stored as NULL.
type DepartureRecord struct {
	// Metadata about the API call
	ResponseTimestamp *string `json:"response_timestamp" csv:"response_timestamp"`
	QueryTime         *string `json:"query_time" csv:"query_time"`
	QueryAreaID       *string `json:"query_area_id" csv:"query_area_id"`

	// Departure timing
	ScheduledTime *string `json:"scheduled_time" csv:"scheduled_time"`
	RealtimeTime  *string `json:"realtime_time" csv:"realtime_time"`
	DelaySeconds  *int64  `json:"delay_seconds" csv:"delay_seconds"`
	Canceled      *bool   `json:"canceled" csv:"canceled"`
	IsRealtime    *bool   `json:"is_realtime" csv:"is_realtime"`

	// Route
	RouteName              *string `json:"route_name" csv:"route_name"`
	RouteDesignation       *string `json:"route_designation" csv:"route_designation"`
	RouteTransportModeCode *int64  `json:"route_transport_mode_code" csv:"route_transport_mode_code"`
	RouteTransportMode     *string `json:"route_transport_mode" csv:"route_transport_mode"`
	RouteDirection         *string `json:"route_direction" csv:"route_direction"`

	// Origin and destination of the route
	OriginStopID        *string `json:"origin_stop_id" csv:"origin_stop_id"`
	OriginStopName      *string `json:"origin_stop_name" csv:"origin_stop_name"`
	DestinationStopID   *string `json:"destination_stop_id" csv:"destination_stop_id"`
	DestinationStopName *string `json:"destination_stop_name" csv:"destination_stop_name"`

	// Trip
	TripID              *string `json:"trip_id" csv:"trip_id"`
	TripStartDate       *string `json:"trip_start_date" csv:"trip_start_date"`
	TripTechnicalNumber *int64  `json:"trip_technical_number" csv:"trip_technical_number"`

	// Agency
	AgencyID       *string `json:"agency_id" csv:"agency_id"`
	AgencyName     *string `json:"agency_name" csv:"agency_name"`
	AgencyOperator *string `json:"agency_operator" csv:"agency_operator"`

	// Stop where the departure happens
	StopID   *string  `json:"stop_id" csv:"stop_id"`
	StopName *string  `json:"stop_name" csv:"stop_name"`
	StopLat  *float64 `json:"stop_lat" csv:"stop_lat"`
	StopLon  *float64 `json:"stop_lon" csv:"stop_lon"`
}

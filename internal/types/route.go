package types

import (
	"time"
)

// RouteLink is one route harvested from a listing page.
type RouteLink struct {
	// Name is the route's displayed text, e.g. "Guwahati to Tezpur".
	Name string `json:"route_name" bson:"route_name"`

	// URL is the route's detail page.
	URL string `json:"route_url" bson:"route_url"`

	// RegionTag identifies the listing source being crawled. It is supplied
	// by configuration and never derived from page content.
	RegionTag string `json:"region_tag" bson:"region_tag"`
}

// TripRecord is one bus offering scraped from a route page.
// Nil pointer fields are absent: the value could not be located or parsed.
type TripRecord struct {
	CarrierName   string `json:"carrier_name"   bson:"carrier_name"`
	TripType      string `json:"trip_type"      bson:"trip_type"`
	DepartureTime string `json:"departure_time" bson:"departure_time"`
	Duration      string `json:"duration"       bson:"duration"`
	ArrivalTime   string `json:"arrival_time"   bson:"arrival_time"`

	StarRating    *float64 `json:"star_rating"    bson:"star_rating"`
	Price         *float64 `json:"price"          bson:"price"`
	PreviousPrice *float64 `json:"previous_price" bson:"previous_price"`
	TotalSeats    *int     `json:"total_seats"    bson:"total_seats"`
	WindowSeats   *int     `json:"window_seats"   bson:"window_seats"`
}

// RouteBatch is the unit of persistence: a route and every trip scraped from it.
type RouteBatch struct {
	Route     RouteLink    `json:"route"      bson:"route"`
	Trips     []TripRecord `json:"trips"      bson:"trips"`
	ScrapedAt time.Time    `json:"scraped_at" bson:"scraped_at"`
}

// NewRouteBatch wraps the trips scraped for route. The trip slice is copied
// so the batch does not share backing storage with the caller.
func NewRouteBatch(route RouteLink, trips []TripRecord) RouteBatch {
	return RouteBatch{
		Route:     route,
		Trips:     append([]TripRecord(nil), trips...),
		ScrapedAt: time.Now().UTC(),
	}
}

// Len returns the number of trips in the batch.
func (b RouteBatch) Len() int {
	return len(b.Trips)
}

// Row is one flattened output record: the stored schema for a single trip.
type Row struct {
	RouteLink
	TripRecord
	ScrapedAt time.Time `json:"scraped_at"`
}

// Rows flattens the batch into one Row per trip, in scraped order.
func (b RouteBatch) Rows() []Row {
	rows := make([]Row, len(b.Trips))
	for i, t := range b.Trips {
		rows[i] = Row{RouteLink: b.Route, TripRecord: t, ScrapedAt: b.ScrapedAt}
	}
	return rows
}

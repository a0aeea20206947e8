// Package scraper harvests route links from listing pages and trip records
// from route pages.
package scraper

import (
	"fmt"
	"strings"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/browser"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/config"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/extract"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// Trip field names as they appear in target configuration.
const (
	FieldCarrierName   = "carrier_name"
	FieldTripType      = "trip_type"
	FieldDepartureTime = "departure_time"
	FieldDuration      = "duration"
	FieldArrivalTime   = "arrival_time"
	FieldStarRating    = "star_rating"
	FieldPrice         = "price"
	FieldPreviousPrice = "previous_price"
	FieldTotalSeats    = "total_seats"
	FieldWindowSeats   = "window_seats"
)

var fieldKinds = []struct {
	name string
	kind extract.Kind
}{
	{FieldCarrierName, extract.KindText},
	{FieldTripType, extract.KindText},
	{FieldDepartureTime, extract.KindText},
	{FieldDuration, extract.KindText},
	{FieldArrivalTime, extract.KindText},
	{FieldStarRating, extract.KindNumeric},
	{FieldPrice, extract.KindNumeric},
	{FieldPreviousPrice, extract.KindNumeric},
	{FieldTotalSeats, extract.KindInteger},
	{FieldWindowSeats, extract.KindInteger},
}

// Schema is a target's compiled trip layout.
type Schema struct {
	Item browser.Locator

	CarrierName   extract.Field
	TripType      extract.Field
	DepartureTime extract.Field
	Duration      extract.Field
	ArrivalTime   extract.Field

	StarRating    extract.Field
	Price         extract.Field
	PreviousPrice extract.Field
	TotalSeats    extract.Field
	WindowSeats   extract.Field
}

// CompileSchema parses the locators and cleaners of a target's trip fields.
func CompileSchema(t config.TargetConfig) (Schema, error) {
	item, err := browser.ParseLocator(t.TripItem)
	if err != nil {
		return Schema{}, fmt.Errorf("trip_item: %w", err)
	}

	fields := make(map[string]extract.Field, len(fieldKinds))
	for _, fk := range fieldKinds {
		fc, ok := t.Fields[fk.name]
		if !ok || strings.TrimSpace(fc.Selector) == "" {
			return Schema{}, fmt.Errorf("field %s: selector is required", fk.name)
		}
		loc, err := browser.ParseLocator(fc.Selector)
		if err != nil {
			return Schema{}, fmt.Errorf("field %s: %w", fk.name, err)
		}
		cleaners, err := extract.ParseCleaners(fc.Cleaners)
		if err != nil {
			return Schema{}, fmt.Errorf("field %s: %w", fk.name, err)
		}
		fields[fk.name] = extract.Field{Name: fk.name, Locator: loc, Kind: fk.kind, Cleaners: cleaners}
	}

	return Schema{
		Item:          item,
		CarrierName:   fields[FieldCarrierName],
		TripType:      fields[FieldTripType],
		DepartureTime: fields[FieldDepartureTime],
		Duration:      fields[FieldDuration],
		ArrivalTime:   fields[FieldArrivalTime],
		StarRating:    fields[FieldStarRating],
		Price:         fields[FieldPrice],
		PreviousPrice: fields[FieldPreviousPrice],
		TotalSeats:    fields[FieldTotalSeats],
		WindowSeats:   fields[FieldWindowSeats],
	}, nil
}

// Trip builds a record from one trip item. It fails with types.ErrNotFound
// when a required text field is missing; optional fields are nil instead.
func (s Schema) Trip(item browser.Node) (types.TripRecord, error) {
	var trip types.TripRecord

	required := []struct {
		field extract.Field
		dst   *string
	}{
		{s.CarrierName, &trip.CarrierName},
		{s.TripType, &trip.TripType},
		{s.DepartureTime, &trip.DepartureTime},
		{s.Duration, &trip.Duration},
		{s.ArrivalTime, &trip.ArrivalTime},
	}
	for _, r := range required {
		text, ok := extract.Extract(item, r.field).Text()
		if !ok {
			return types.TripRecord{}, fmt.Errorf("%s: %w", r.field.Name, types.ErrNotFound)
		}
		*r.dst = text
	}

	trip.StarRating = extract.Extract(item, s.StarRating).Float()
	trip.Price = extract.Extract(item, s.Price).Float()
	trip.PreviousPrice = extract.Extract(item, s.PreviousPrice).Float()
	trip.TotalSeats = extract.Extract(item, s.TotalSeats).Int()
	trip.WindowSeats = extract.Extract(item, s.WindowSeats).Int()

	return trip, nil
}

// Package domain contains the core data types for the trip ingestion pipeline
// and the read API. It has no internal dependencies and is imported by every
// other internal package (csvfile, validation, repo, ingest, service, handler).
package domain

import (
	"strings"
	"time"
)

// Status is the outcome recorded for a single trip.
type Status string

const (
	StatusDone       Status = "done"
	StatusNotRespond Status = "not_respond"
)

// Valid reports whether s is one of ValidStatuses. Matching is exact and
// case-sensitive; callers trim surrounding whitespace first.
func (s Status) Valid() bool {
	_, ok := ValidStatuses[s]
	return ok
}

// ParseStatus trims raw and returns it as a Status when it is valid.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.TrimSpace(raw))
	return s, s.Valid()
}

// ParseTripDate parses trip_date text as a wall-clock reading. The result is
// in UTC so that no zone rule can shift it; the trips column stores it as is.
func ParseTripDate(raw string) (time.Time, error) {
	return time.ParseInLocation(TripDateLayout, raw, time.UTC)
}

// WallClock returns the reading of a clock in loc at instant t, in the same
// form ParseTripDate produces, so the two can be compared.
func WallClock(t time.Time, loc *time.Location) time.Time {
	w := t.In(loc)
	return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), time.UTC)
}

// Trip is one CSV row and one row of the trips table.
// TripID is the natural key and the store's conflict key.
type Trip struct {
	TripID   string    `json:"trip_id"`
	ClientID string    `json:"client_id"`
	DriverID string    `json:"driver_id"`
	TripDate time.Time `json:"trip_date"`
	Status   Status    `json:"status"`
}

// ClientTrip is the per-row projection returned by a client history lookup.
type ClientTrip struct {
	TripID   string    `json:"trip_id"`
	DriverID string    `json:"driver_id"`
	TripDate time.Time `json:"trip_date"`
	Status   Status    `json:"status"`
}

// DriverStats aggregates trip counts for a single driver.
// A driver with no trips has all counts at zero.
type DriverStats struct {
	DriverID   string `json:"driver_id"`
	TotalTrips int64  `json:"total_trips"`
	Done       int64  `json:"done"`
	NotRespond int64  `json:"not_respond"`
}

package domain

import "regexp"

// Column names of the trip record. These are both the CSV header names and
// the trips table column names.
const (
	FieldTripID   = "trip_id"
	FieldClientID = "client_id"
	FieldDriverID = "driver_id"
	FieldTripDate = "trip_date"
	FieldStatus   = "status"
)

// RequiredFields is the set of columns every input file must carry, in the
// order used for inserts. Extra columns are allowed.
var RequiredFields = []string{
	FieldTripID,
	FieldClientID,
	FieldDriverID,
	FieldTripDate,
	FieldStatus,
}

// ValidStatuses is the closed set of accepted status values.
var ValidStatuses = map[Status]struct{}{
	StatusDone:       {},
	StatusNotRespond: {},
}

// TripDateLayout is the time.Parse layout for trip_date ("YYYY-MM-DD HH:MM:SS.mmm").
const TripDateLayout = "2006-01-02 15:04:05.000"

// TripDatePattern matches trip_date text exactly. It is checked before parsing
// because time.Parse accepts variants (e.g. extra fractional digits) that the
// file format does not.
var TripDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}$`)

// Delimiter separates fields in the input file. The quote character is '"'.
const Delimiter = ';'

// NullMarkers are cell texts read as an absent value.
var NullMarkers = map[string]struct{}{
	"":     {},
	" ":    {},
	"NULL": {},
	"null": {},
}

// IsNullMarker reports whether raw cell text denotes an absent value.
func IsNullMarker(raw string) bool {
	_, ok := NullMarkers[raw]
	return ok
}

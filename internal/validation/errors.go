package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Rule-class sentinels. Every error returned by Validator.Validate wraps
// exactly one of these; use errors.Is or KindOf to classify it.
var (
	ErrEmptyInput     = errors.New("empty input")
	ErrMalformedInput = errors.New("malformed input")
	ErrSchema         = errors.New("missing required columns")
	ErrNullOrBlank    = errors.New("null or blank value")
	ErrDuplicate      = errors.New("duplicate records")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrDateFormat     = errors.New("trip_date must match format YYYY-MM-DD HH:MM:SS.mmm")
	ErrFutureDate     = errors.New("trip_date in the future")
)

// Kind names a rule class. It is used as a metrics label and stored in the
// ingestion run log.
type Kind string

const (
	KindEmptyInput     Kind = "empty_input"
	KindMalformedInput Kind = "malformed_input"
	KindSchema         Kind = "schema"
	KindNullOrBlank    Kind = "null_or_blank"
	KindDuplicate      Kind = "duplicate"
	KindInvalidStatus  Kind = "invalid_status"
	KindDateFormat     Kind = "date_format"
	KindFutureDate     Kind = "future_date"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrEmptyInput, KindEmptyInput},
	{ErrMalformedInput, KindMalformedInput},
	{ErrSchema, KindSchema},
	{ErrNullOrBlank, KindNullOrBlank},
	{ErrDuplicate, KindDuplicate},
	{ErrInvalidStatus, KindInvalidStatus},
	{ErrDateFormat, KindDateFormat},
	{ErrFutureDate, KindFutureDate},
}

// KindOf returns the rule class of err, or "" if err is not a validation error.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// SchemaError lists the required columns absent from the header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: %s", ErrSchema, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// DuplicateError reports both duplicate conditions. TripIDs holds each
// trip_id that appears more than once; RowLines holds the line of every row
// that repeats an earlier row across all columns. At least one is non-empty.
type DuplicateError struct {
	TripIDs  []string
	RowLines []int
}

// IDCollision reports whether some trip_id repeats.
func (e *DuplicateError) IDCollision() bool { return len(e.TripIDs) > 0 }

// RowCollision reports whether some full row repeats.
func (e *DuplicateError) RowCollision() bool { return len(e.RowLines) > 0 }

func (e *DuplicateError) Error() string {
	var parts []string
	if e.IDCollision() {
		parts = append(parts, fmt.Sprintf("duplicate trip_id values %s", strings.Join(e.TripIDs, ", ")))
	}
	if e.RowCollision() {
		lines := make([]string, len(e.RowLines))
		for i, l := range e.RowLines {
			lines[i] = fmt.Sprint(l)
		}
		parts = append(parts, fmt.Sprintf("duplicate rows at lines %s", strings.Join(lines, ", ")))
	}
	return fmt.Sprintf("%v: %s", ErrDuplicate, strings.Join(parts, "; "))
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

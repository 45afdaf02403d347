package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripfeed/internal/domain"
)

// TripDateWireLayout renders trip_date without a zone offset. The stored
// value is wall-clock time in the ingest timezone, not an instant.
const TripDateWireLayout = "2006-01-02T15:04:05.000"

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorDetail is the error payload.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps every non-2xx body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ClientTrip is one element of GET /clients/{client_id}/trips.
type ClientTrip struct {
	TripID   string `json:"trip_id"`
	DriverID string `json:"driver_id"`
	TripDate string `json:"trip_date"`
	Status   string `json:"status"`
}

// DriverStats is the body of GET /drivers/{driver_id}/stats.
type DriverStats struct {
	DriverID   string `json:"driver_id"`
	TotalTrips int64  `json:"total_trips"`
	Done       int64  `json:"done"`
	NotRespond int64  `json:"not_respond"`
}

// IngestRun is one element of GET /ingest/runs.
type IngestRun struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	ArchivedAs  string    `json:"archived_as"`
	Checksum    string    `json:"checksum"`
	Outcome     string    `json:"outcome"`
	FailureKind *string   `json:"failure_kind,omitempty"`
	Error       *string   `json:"error,omitempty"`
	Rows        int64     `json:"rows"`
	Inserted    int64     `json:"inserted"`
	Skipped     int64     `json:"skipped"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// IngestRunList is the body of GET /ingest/runs.
type IngestRunList struct {
	Data       []IngestRun `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

func clientTripToResponse(t domain.ClientTrip) ClientTrip {
	return ClientTrip{
		TripID:   t.TripID,
		DriverID: t.DriverID,
		TripDate: t.TripDate.Format(TripDateWireLayout),
		Status:   string(t.Status),
	}
}

func driverStatsToResponse(s domain.DriverStats) DriverStats {
	return DriverStats(s)
}

func ingestRunToResponse(r domain.IngestRun) IngestRun {
	return IngestRun{
		ID:          r.ID,
		FileName:    r.FileName,
		ArchivedAs:  r.ArchivedAs,
		Checksum:    r.Checksum,
		Outcome:     string(r.Outcome),
		FailureKind: nilIfEmpty(r.FailureKind),
		Error:       nilIfEmpty(r.Error),
		Rows:        r.Rows,
		Inserted:    r.Inserted,
		Skipped:     r.Skipped,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
}

// nilIfEmpty converts an empty string to a nil pointer so optional fields are
// omitted from the response rather than sent as empty strings.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

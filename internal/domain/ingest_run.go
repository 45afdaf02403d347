package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunOutcome is the terminal state of one ingestion run.
type RunOutcome string

const (
	// RunSuccess means the file validated, loaded, and was archived to history.
	RunSuccess RunOutcome = "success"
	// RunRejected means validation or loading failed and the file was archived
	// to the rejected directory.
	RunRejected RunOutcome = "rejected"
)

// IngestRun is the audit record written once per ingestion run.
// FailureKind and Error are empty for successful runs.
type IngestRun struct {
	ID          uuid.UUID  `json:"id"`
	FileName    string     `json:"file_name"`
	ArchivedAs  string     `json:"archived_as"`
	Checksum    string     `json:"checksum"`
	Outcome     RunOutcome `json:"outcome"`
	FailureKind string     `json:"failure_kind,omitempty"`
	Error       string     `json:"error,omitempty"`
	Rows        int64      `json:"rows"`
	Inserted    int64      `json:"inserted"`
	Skipped     int64      `json:"skipped"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
}

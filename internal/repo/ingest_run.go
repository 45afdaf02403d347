package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tripfeed/internal/domain"
)

// IngestRunRepo persists the audit log of ingestion runs.
type IngestRunRepo interface {
	// Create records a finished run.
	Create(ctx context.Context, run domain.IngestRun) error

	// List returns runs ordered by started_at descending, one page at a time.
	List(ctx context.Context, p domain.PageParams) (domain.Page[domain.IngestRun], error)
}

type pgIngestRunRepo struct {
	db db
}

// NewIngestRunRepo constructs an IngestRunRepo backed by the provided db connection.
func NewIngestRunRepo(db db) IngestRunRepo {
	return &pgIngestRunRepo{db: db}
}

func (r *pgIngestRunRepo) Create(ctx context.Context, run domain.IngestRun) error {
	const q = `
		INSERT INTO ingest_runs (
			id, file_name, archived_as, checksum, outcome, failure_kind, error,
			row_count, inserted, skipped, started_at, finished_at
		) VALUES (
			@id, @file_name, @archived_as, @checksum, @outcome, @failure_kind, @error,
			@row_count, @inserted, @skipped, @started_at, @finished_at
		)`

	_, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"id":           run.ID,
		"file_name":    run.FileName,
		"archived_as":  run.ArchivedAs,
		"checksum":     run.Checksum,
		"outcome":      string(run.Outcome),
		"failure_kind": run.FailureKind,
		"error":        run.Error,
		"row_count":    run.Rows,
		"inserted":     run.Inserted,
		"skipped":      run.Skipped,
		"started_at":   run.StartedAt,
		"finished_at":  run.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("repo.IngestRunRepo.Create: %w", err)
	}
	return nil
}

func (r *pgIngestRunRepo) List(ctx context.Context, p domain.PageParams) (domain.Page[domain.IngestRun], error) {
	const countQ = `SELECT COUNT(*) FROM ingest_runs`
	const q = `
		SELECT id, file_name, archived_as, checksum, outcome, failure_kind, error,
		       row_count, inserted, skipped, started_at, finished_at
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT @limit OFFSET @offset`

	var page domain.Page[domain.IngestRun]
	if err := r.db.QueryRow(ctx, countQ).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("repo.IngestRunRepo.List: count: %w", err)
	}

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return page, fmt.Errorf("repo.IngestRunRepo.List: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			run     domain.IngestRun
			id      pgtype.UUID
			outcome string
		)
		err := rows.Scan(&id, &run.FileName, &run.ArchivedAs, &run.Checksum, &outcome,
			&run.FailureKind, &run.Error, &run.Rows, &run.Inserted, &run.Skipped,
			&run.StartedAt, &run.FinishedAt)
		if err != nil {
			return page, fmt.Errorf("repo.IngestRunRepo.List: scan: %w", err)
		}
		run.ID = uuid.UUID(id.Bytes)
		run.Outcome = domain.RunOutcome(outcome)
		page.Items = append(page.Items, run)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("repo.IngestRunRepo.List: rows: %w", err)
	}

	return page, nil
}

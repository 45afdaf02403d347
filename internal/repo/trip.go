// Package repo contains all database access logic for tripfeed.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/tripfeed/internal/domain"
)

// DefaultPageSize is the number of rows sent per network round trip by
// TripRepo.InsertIgnoreConflicts.
const DefaultPageSize = 500

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly lets the loader
// hand the repo its transaction and lets integration tests pass a transaction
// that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// TripRepo defines the persistence operations for trips.
type TripRepo interface {
	// InsertIgnoreConflicts inserts trips in pages of pageSize rows, one round
	// trip per page. A row whose trip_id already exists is skipped, never
	// updated. It returns the number of rows actually inserted.
	// Callers wanting all-or-nothing semantics must pass a transaction.
	InsertIgnoreConflicts(ctx context.Context, trips []domain.Trip, pageSize int) (int64, error)

	// ListByClient returns every trip of a client ordered by trip_date descending.
	ListByClient(ctx context.Context, clientID string) ([]domain.ClientTrip, error)

	// StatsByDriver returns trip counts for a driver. An unknown driver yields
	// zero counts, not an error.
	StatsByDriver(ctx context.Context, driverID string) (domain.DriverStats, error)
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool or the loader's pgx.Tx; in tests pass a
// pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const insertTripSQL = `
	INSERT INTO trips (trip_id, client_id, driver_id, trip_date, status)
	VALUES (@trip_id, @client_id, @driver_id, @trip_date, @status)
	ON CONFLICT (trip_id) DO NOTHING`

// InsertIgnoreConflicts queues one insert per trip on a pgx.Batch and flushes
// it every pageSize rows.
func (r *pgTripRepo) InsertIgnoreConflicts(ctx context.Context, trips []domain.Trip, pageSize int) (int64, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var inserted int64
	for start := 0; start < len(trips); start += pageSize {
		end := min(start+pageSize, len(trips))
		n, err := r.sendPage(ctx, trips[start:end])
		inserted += n
		if err != nil {
			return inserted, fmt.Errorf("repo.TripRepo.InsertIgnoreConflicts: rows %d-%d: %w", start, end-1, err)
		}
	}
	return inserted, nil
}

// sendPage sends one batch and reads every result so the first failing
// statement is reported. The batch results are always closed.
func (r *pgTripRepo) sendPage(ctx context.Context, page []domain.Trip) (n int64, err error) {
	b := &pgx.Batch{}
	for _, t := range page {
		b.Queue(insertTripSQL, pgx.NamedArgs{
			"trip_id":   t.TripID,
			"client_id": t.ClientID,
			"driver_id": t.DriverID,
			"trip_date": t.TripDate,
			"status":    string(t.Status),
		})
	}

	br := r.db.SendBatch(ctx, b)
	defer func() {
		if cerr := br.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for i := range page {
		tag, err := br.Exec()
		if err != nil {
			return n, fmt.Errorf("trip_id %q: %w", page[i].TripID, err)
		}
		n += tag.RowsAffected()
	}
	return n, nil
}

// ListByClient returns a client's trips, most recent first.
func (r *pgTripRepo) ListByClient(ctx context.Context, clientID string) ([]domain.ClientTrip, error) {
	const q = `
		SELECT trip_id, driver_id, trip_date, status
		FROM trips
		WHERE client_id = @client_id
		ORDER BY trip_date DESC, trip_id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"client_id": clientID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListByClient: %w", err)
	}
	defer rows.Close()

	var trips []domain.ClientTrip
	for rows.Next() {
		var (
			t      domain.ClientTrip
			status string
		)
		if err := rows.Scan(&t.TripID, &t.DriverID, &t.TripDate, &status); err != nil {
			return nil, fmt.Errorf("repo.TripRepo.ListByClient: scan: %w", err)
		}
		t.Status = domain.Status(status)
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListByClient: rows: %w", err)
	}

	return trips, nil
}

// StatsByDriver aggregates a driver's trips by status.
func (r *pgTripRepo) StatsByDriver(ctx context.Context, driverID string) (domain.DriverStats, error) {
	const q = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'done'),
			COUNT(*) FILTER (WHERE status = 'not_respond')
		FROM trips
		WHERE driver_id = @driver_id`

	s := domain.DriverStats{DriverID: driverID}
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"driver_id": driverID}).
		Scan(&s.TotalTrips, &s.Done, &s.NotRespond)
	if err != nil {
		return domain.DriverStats{}, fmt.Errorf("repo.TripRepo.StatsByDriver: %w", err)
	}
	return s, nil
}

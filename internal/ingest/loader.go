// Package ingest moves a validated trips file into the store: the Loader
// writes it in one transaction and the Driver runs a whole ingestion cycle
// around it (wait, validate, load, archive).
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/tripfeed/internal/csvfile"
	"github.com/pkordes/tripfeed/internal/domain"
	"github.com/pkordes/tripfeed/internal/repo"
)

// ErrLoadFailure marks every error returned by Loader.Load.
var ErrLoadFailure = errors.New("load failure")

// LoadError reports a failed load. Nothing from Path was committed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrLoadFailure and the underlying cause.
func (e *LoadError) Unwrap() []error { return []error{ErrLoadFailure, e.Err} }

// TxBeginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
// A pgx.Tx begins a savepoint, which is what the integration tests rely on.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LoadResult counts what a load did. Rows = Inserted + Skipped.
type LoadResult struct {
	Rows     int64
	Inserted int64
	Skipped  int64
	// DriverIDs lists each distinct driver_id in the file, in first-seen order.
	DriverIDs []string
}

// Loader writes a trips file into the store.
type Loader struct {
	db       TxBeginner
	pageSize int
	log      *slog.Logger

	newRepo func(pgx.Tx) repo.TripRepo
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPageSize sets the rows sent per round trip. Values <= 0 mean repo.DefaultPageSize.
func WithPageSize(n int) LoaderOption {
	return func(l *Loader) { l.pageSize = n }
}

// WithLoadLogger sets the logger. Defaults to slog.Default().
func WithLoadLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// NewLoader returns a Loader that opens its transactions on db.
func NewLoader(db TxBeginner, opts ...LoaderOption) *Loader {
	l := &Loader{
		db:       db,
		pageSize: repo.DefaultPageSize,
		log:      slog.Default(),
		newRepo:  func(tx pgx.Tx) repo.TripRepo { return repo.NewTripRepo(tx) },
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads the file at path and inserts every row in a single transaction.
// Rows whose trip_id already exists are skipped. On any error the whole file
// is rolled back and a *LoadError is returned.
func (l *Loader) Load(ctx context.Context, path string) (LoadResult, error) {
	trips, err := l.Prepare(path)
	if err != nil {
		return LoadResult{}, &LoadError{Path: path, Err: err}
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return LoadResult{}, &LoadError{Path: path, Err: fmt.Errorf("begin: %w", err)}
	}
	// No-op once committed. Runs on a fresh context so a cancelled run still
	// releases the connection cleanly.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	inserted, err := l.newRepo(tx).InsertIgnoreConflicts(ctx, trips, l.pageSize)
	if err != nil {
		return LoadResult{}, &LoadError{Path: path, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return LoadResult{}, &LoadError{Path: path, Err: fmt.Errorf("commit: %w", err)}
	}

	res := LoadResult{
		Rows:      int64(len(trips)),
		Inserted:  inserted,
		Skipped:   int64(len(trips)) - inserted,
		DriverIDs: driverIDs(trips),
	}
	l.log.InfoContext(ctx, "trips loaded",
		"path", path, "rows", res.Rows, "inserted", res.Inserted, "skipped", res.Skipped)
	return res, nil
}

// Prepare reads the file at path and converts every row into a domain.Trip.
// It performs only the conversions the store needs; rule checking is the
// validator's job.
func (l *Loader) Prepare(path string) ([]domain.Trip, error) {
	tbl, err := csvfile.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(domain.RequiredFields))
	for _, f := range domain.RequiredFields {
		i, ok := tbl.Column(f)
		if !ok {
			return nil, fmt.Errorf("column %q missing", f)
		}
		cols[f] = i
	}

	trips := make([]domain.Trip, 0, len(tbl.Rows))
	for _, r := range tbl.Rows {
		raw := r.Cells[cols[domain.FieldTripDate]].Text
		ts, err := domain.ParseTripDate(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: trip_date %q: %w", r.Line, raw, err)
		}
		// An invalid status is passed through; the table's CHECK constraint
		// rejects it and the whole load rolls back.
		status, _ := domain.ParseStatus(r.Cells[cols[domain.FieldStatus]].Text)
		trips = append(trips, domain.Trip{
			TripID:   r.Cells[cols[domain.FieldTripID]].Text,
			ClientID: r.Cells[cols[domain.FieldClientID]].Text,
			DriverID: r.Cells[cols[domain.FieldDriverID]].Text,
			TripDate: ts,
			Status:   status,
		})
	}
	return trips, nil
}

func driverIDs(trips []domain.Trip) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, t := range trips {
		if _, ok := seen[t.DriverID]; ok {
			continue
		}
		seen[t.DriverID] = struct{}{}
		ids = append(ids, t.DriverID)
	}
	return ids
}

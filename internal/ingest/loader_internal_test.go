package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripfeed/internal/domain"
	"github.com/pkordes/tripfeed/internal/repo"
)

// fakeTx records how the transaction ended. Methods the loader does not call
// panic through the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.committed {
		return pgx.ErrTxClosed
	}
	tx.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

// mockTripRepo implements repo.TripRepo using function fields.
type mockTripRepo struct {
	insertFn func(ctx context.Context, trips []domain.Trip, pageSize int) (int64, error)
}

func (m *mockTripRepo) InsertIgnoreConflicts(ctx context.Context, trips []domain.Trip, pageSize int) (int64, error) {
	return m.insertFn(ctx, trips, pageSize)
}

func (m *mockTripRepo) ListByClient(context.Context, string) ([]domain.ClientTrip, error) {
	panic("not used by the loader")
}

func (m *mockTripRepo) StatsByDriver(context.Context, string) (domain.DriverStats, error) {
	panic("not used by the loader")
}

var _ repo.TripRepo = (*mockTripRepo)(nil)

func writeFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "output.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func newFakeLoader(b *fakeBeginner, r *mockTripRepo, opts ...LoaderOption) *Loader {
	l := NewLoader(b, opts...)
	l.newRepo = func(pgx.Tx) repo.TripRepo { return r }
	return l
}

func TestLoader_Prepare(t *testing.T) {
	path := writeFile(t,
		"status;trip_date;driver_id;client_id;trip_id;extra",
		" done ;2024-05-01 10:00:00.123;D1;C1;A1;x",
		"not_respond;2024-05-01 11:00:00.000;D2;C2;A2;y",
	)
	l := NewLoader(&fakeBeginner{})

	trips, err := l.Prepare(path)

	require.NoError(t, err)
	assert.Equal(t, []domain.Trip{
		{TripID: "A1", ClientID: "C1", DriverID: "D1", TripDate: time.Date(2024, 5, 1, 10, 0, 0, 123e6, time.UTC), Status: domain.StatusDone},
		{TripID: "A2", ClientID: "C2", DriverID: "D2", TripDate: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC), Status: domain.StatusNotRespond},
	}, trips)
}

// 02:30 on 2024-03-31 does not exist in Central Europe; the text is still
// stored exactly as written.
func TestLoader_PrepareKeepsWallClockInDSTGap(t *testing.T) {
	path := writeFile(t,
		"trip_id;client_id;driver_id;trip_date;status",
		"A1;C1;D1;2024-03-31 02:30:00.000;done",
	)

	trips, err := NewLoader(&fakeBeginner{}).Prepare(path)

	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "2024-03-31 02:30:00.000", trips[0].TripDate.Format(domain.TripDateLayout))
	assert.Equal(t, time.UTC, trips[0].TripDate.Location())
}

func TestLoader_PrepareRejectsBadDate(t *testing.T) {
	path := writeFile(t,
		"trip_id;client_id;driver_id;trip_date;status",
		"A1;C1;D1;2024-05-01;done",
	)

	_, err := NewLoader(&fakeBeginner{}).Prepare(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoader_PrepareMissingColumn(t *testing.T) {
	path := writeFile(t, "trip_id;client_id", "A1;C1")

	_, err := NewLoader(&fakeBeginner{}).Prepare(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"driver_id"`)
}

func TestLoader_LoadCommits(t *testing.T) {
	path := writeFile(t,
		"trip_id;client_id;driver_id;trip_date;status",
		"A1;C1;D1;2024-05-01 10:00:00.000;done",
		"A2;C2;D2;2024-05-01 11:00:00.000;not_respond",
		"A3;C1;D1;2024-05-01 12:00:00.000;done",
	)
	tx := &fakeTx{}
	var gotPageSize int
	r := &mockTripRepo{insertFn: func(_ context.Context, trips []domain.Trip, pageSize int) (int64, error) {
		gotPageSize = pageSize
		return 2, nil
	}}

	res, err := newFakeLoader(&fakeBeginner{tx: tx}, r, WithPageSize(2)).Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, LoadResult{Rows: 3, Inserted: 2, Skipped: 1, DriverIDs: []string{"D1", "D2"}}, res)
	assert.Equal(t, 2, gotPageSize)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestLoader_LoadRollsBackOnInsertError(t *testing.T) {
	path := writeFile(t,
		"trip_id;client_id;driver_id;trip_date;status",
		"A1;C1;D1;2024-05-01 10:00:00.000;done",
	)
	tx := &fakeTx{}
	cause := errors.New("connection reset")
	r := &mockTripRepo{insertFn: func(context.Context, []domain.Trip, int) (int64, error) {
		return 0, cause
	}}

	_, err := newFakeLoader(&fakeBeginner{tx: tx}, r).Load(context.Background(), path)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadFailure)
	assert.ErrorIs(t, err, cause)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, path, le.Path)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestLoader_LoadCommitError(t *testing.T) {
	path := writeFile(t,
		"trip_id;client_id;driver_id;trip_date;status",
		"A1;C1;D1;2024-05-01 10:00:00.000;done",
	)
	tx := &fakeTx{commitErr: errors.New("serialization failure")}
	r := &mockTripRepo{insertFn: func(context.Context, []domain.Trip, int) (int64, error) { return 1, nil }}

	_, err := newFakeLoader(&fakeBeginner{tx: tx}, r).Load(context.Background(), path)

	assert.ErrorIs(t, err, ErrLoadFailure)
	assert.True(t, tx.rolledBack)
}

func TestLoader_LoadBeginError(t *testing.T) {
	path := writeFile(t,
		"trip_id;client_id;driver_id;trip_date;status",
		"A1;C1;D1;2024-05-01 10:00:00.000;done",
	)
	cause := errors.New("pool closed")

	_, err := newFakeLoader(&fakeBeginner{err: cause}, &mockTripRepo{}).Load(context.Background(), path)

	assert.ErrorIs(t, err, ErrLoadFailure)
	assert.ErrorIs(t, err, cause)
}

func TestLoader_LoadUnreadableFileNeverBegins(t *testing.T) {
	b := &fakeBeginner{err: errors.New("must not be called")}

	_, err := newFakeLoader(b, &mockTripRepo{}).Load(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))

	assert.ErrorIs(t, err, ErrLoadFailure)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

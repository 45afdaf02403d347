package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripfeed/internal/domain"
	"github.com/pkordes/tripfeed/internal/repo"
	"github.com/pkordes/tripfeed/testutil"
)

// newTestRepo returns a TripRepo backed by a transaction that is rolled back
// when the test finishes.
// Requires TEST_DATABASE_URL; migrations are applied by TestMain.
func newTestRepo(t *testing.T) repo.TripRepo {
	t.Helper()
	return repo.NewTripRepo(testutil.NewTx(t))
}

// tripFixture returns a trip with sensible defaults. Callers override fields.
func tripFixture(id string) domain.Trip {
	return domain.Trip{
		TripID:   id,
		ClientID: "C1",
		DriverID: "D1",
		TripDate: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:   domain.StatusDone,
	}
}

func TestTripRepo_InsertIgnoreConflicts(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	a2 := tripFixture("A2")
	a2.ClientID, a2.DriverID, a2.Status = "C2", "D2", domain.StatusNotRespond
	a2.TripDate = time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	n, err := r.InsertIgnoreConflicts(ctx, []domain.Trip{tripFixture("A1"), a2}, repo.DefaultPageSize)

	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := r.ListByClient(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A1", got[0].TripID)
	assert.Equal(t, "D1", got[0].DriverID)
	assert.True(t, got[0].TripDate.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	stats, err := r.StatsByDriver(ctx, "D2")
	require.NoError(t, err)
	assert.Equal(t, domain.DriverStats{DriverID: "D2", TotalTrips: 1, Done: 0, NotRespond: 1}, stats)
}

func TestTripRepo_InsertIgnoreConflicts_FirstWriteWins(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.InsertIgnoreConflicts(ctx, []domain.Trip{tripFixture("A1")}, repo.DefaultPageSize)
	require.NoError(t, err)

	changed := tripFixture("A1")
	changed.Status = domain.StatusNotRespond
	changed.TripDate = changed.TripDate.Add(-time.Hour)

	n, err := r.InsertIgnoreConflicts(ctx, []domain.Trip{changed}, repo.DefaultPageSize)

	require.NoError(t, err, "a conflicting trip_id is not an error")
	assert.EqualValues(t, 0, n)

	got, err := r.ListByClient(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, got, 1, "no duplicate row")
	assert.Equal(t, domain.StatusDone, got[0].Status, "stored row is not updated")
	assert.True(t, got[0].TripDate.Equal(tripFixture("A1").TripDate))
}

func TestTripRepo_InsertIgnoreConflicts_Idempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	batch := []domain.Trip{tripFixture("A1"), tripFixture("A2"), tripFixture("A3")}

	first, err := r.InsertIgnoreConflicts(ctx, batch, 2)
	require.NoError(t, err)
	second, err := r.InsertIgnoreConflicts(ctx, batch, 2)
	require.NoError(t, err)

	assert.EqualValues(t, 3, first)
	assert.EqualValues(t, 0, second)

	stats, err := r.StatsByDriver(ctx, "D1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalTrips)
}

func TestTripRepo_InsertIgnoreConflicts_ManyPages(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	var batch []domain.Trip
	for i := range 1234 {
		tr := tripFixture(fmt.Sprintf("P%04d", i))
		tr.DriverID = "D-PAGES"
		batch = append(batch, tr)
	}

	n, err := r.InsertIgnoreConflicts(ctx, batch, repo.DefaultPageSize)

	require.NoError(t, err)
	assert.EqualValues(t, len(batch), n)
}

func TestTripRepo_InsertIgnoreConflicts_ConstraintViolation(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	bad := tripFixture("B1")
	bad.Status = "cancelled" // rejected by the status CHECK constraint

	_, err := r.InsertIgnoreConflicts(ctx, []domain.Trip{tripFixture("A1"), bad}, repo.DefaultPageSize)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `trip_id "B1"`)
}

func TestTripRepo_ListByClient_OrderedByDateDesc(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	older := tripFixture("OLD")
	older.ClientID = "C-ORDER"
	newer := tripFixture("NEW")
	newer.ClientID = "C-ORDER"
	newer.TripDate = older.TripDate.Add(24 * time.Hour)

	_, err := r.InsertIgnoreConflicts(ctx, []domain.Trip{older, newer}, repo.DefaultPageSize)
	require.NoError(t, err)

	got, err := r.ListByClient(ctx, "C-ORDER")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "NEW", got[0].TripID)
	assert.Equal(t, "OLD", got[1].TripID)
}

func TestTripRepo_ListByClient_Unknown(t *testing.T) {
	r := newTestRepo(t)

	got, err := r.ListByClient(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTripRepo_StatsByDriver_Unknown(t *testing.T) {
	r := newTestRepo(t)

	got, err := r.StatsByDriver(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Equal(t, domain.DriverStats{DriverID: "nobody"}, got)
}

func TestTripRepo_TripDateKeepsMilliseconds(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	tr := tripFixture("MS")
	tr.ClientID = "C-MS"
	tr.TripDate = time.Date(2024, 5, 1, 10, 0, 0, 123_000_000, time.UTC)

	_, err := r.InsertIgnoreConflicts(ctx, []domain.Trip{tr}, repo.DefaultPageSize)
	require.NoError(t, err)

	got, err := r.ListByClient(ctx, "C-MS")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 123_000_000, got[0].TripDate.Nanosecond())
}

package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripfeed/internal/domain"
	"github.com/pkordes/tripfeed/internal/repo"
	"github.com/pkordes/tripfeed/testutil"
)

func runFixture(started time.Time, outcome domain.RunOutcome) domain.IngestRun {
	return domain.IngestRun{
		ID:         uuid.New(),
		FileName:   "output.csv",
		ArchivedAs: "/data/history/output_20240501_100000.csv",
		Checksum:   "abc123",
		Outcome:    outcome,
		Rows:       2,
		Inserted:   2,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

func TestIngestRunRepo_CreateAndList(t *testing.T) {
	r := repo.NewIngestRunRepo(testutil.NewTx(t))
	ctx := context.Background()

	base := time.Now().Add(48 * time.Hour).Truncate(time.Microsecond)
	first := runFixture(base, domain.RunSuccess)
	second := runFixture(base.Add(time.Hour), domain.RunRejected)
	second.FailureKind = "future_date"
	second.Error = "trip_date in the future"

	require.NoError(t, r.Create(ctx, first))
	require.NoError(t, r.Create(ctx, second))

	page, err := r.List(ctx, domain.NewPageParams(nil, nil))

	require.NoError(t, err)
	require.GreaterOrEqual(t, page.Total, int64(2))
	require.GreaterOrEqual(t, len(page.Items), 2)

	byID := map[uuid.UUID]domain.IngestRun{}
	for _, run := range page.Items {
		byID[run.ID] = run
	}
	got, ok := byID[second.ID]
	require.True(t, ok)
	assert.Equal(t, domain.RunRejected, got.Outcome)
	assert.Equal(t, "future_date", got.FailureKind)
	assert.True(t, got.StartedAt.Equal(second.StartedAt))
}

func TestIngestRunRepo_ListPaging(t *testing.T) {
	r := repo.NewIngestRunRepo(testutil.NewTx(t))
	ctx := context.Background()

	base := time.Now().Add(72 * time.Hour) // newer than anything else in the table
	for i := range 3 {
		require.NoError(t, r.Create(ctx, runFixture(base.Add(time.Duration(i)*time.Minute), domain.RunSuccess)))
	}

	page, limit := 1, 2
	got, err := r.List(ctx, domain.NewPageParams(&page, &limit))

	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.True(t, got.Items[0].StartedAt.After(got.Items[1].StartedAt))
}

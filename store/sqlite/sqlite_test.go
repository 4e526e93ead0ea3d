package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/insight-engine/dataset"
	"github.com/meridian/insight-engine/revenue"
	"github.com/meridian/insight-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(t *testing.T, s string) dataset.Day {
	t.Helper()
	d, err := dataset.ParseDay(s)
	require.NoError(t, err)
	return d
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func TestSnapshot_RoundTrip(t *testing.T) {
	// GIVEN: A snapshot with composite values and mixed field sets
	ctx := context.Background()
	store := newTestStore(t)

	snap := dataset.Empty()
	snap.Projects.Records = []dataset.Record{
		{"id": 10.0, "name": "Alpha", "active": true},
	}
	snap.Timesheet.Records = []dataset.Record{
		{"id": 101.0, "date": "2024-03-01", "unit_amount": 8.5, "task_id": `[5,"Design"]`},
	}

	// WHEN: Saving and loading
	require.NoError(t, store.SaveSnapshot(ctx, snap))
	loaded, err := store.LoadSnapshot(ctx)

	// THEN: Every collection and value survives
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 1, loaded.Projects.Len())
	name, _ := loaded.Projects.Records[0].String("name")
	assert.Equal(t, "Alpha", name)
	hours, _ := loaded.Timesheet.Records[0].Float("unit_amount")
	assert.Equal(t, 8.5, hours)
	id, ok := dataset.ScalarID(loaded.Timesheet.Records[0]["task_id"])
	require.True(t, ok)
	assert.Equal(t, "5", id)
	assert.True(t, loaded.Sales.IsEmpty())
}

func TestSnapshot_NeverSavedIsNil(t *testing.T) {
	store := newTestStore(t)
	loaded, err := store.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSnapshot_SecondSaveReplacesFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := dataset.Empty()
	first.Projects.Records = []dataset.Record{{"id": 10.0, "name": "Alpha"}}
	require.NoError(t, store.SaveSnapshot(ctx, first))

	second := dataset.Empty()
	second.Projects.Records = []dataset.Record{
		{"id": 10.0, "name": "Alpha"},
		{"id": 11.0, "name": "Beta"},
	}
	require.NoError(t, store.SaveSnapshot(ctx, second))

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Projects.Len())
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

func TestSyncAndRecalcStates_Independent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Unset states load as nil, not zero.
	state, err := store.LoadSyncState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	syncAt := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	recalcAt := syncAt.Add(time.Hour)
	require.NoError(t, store.SaveSyncState(ctx, syncAt))
	require.NoError(t, store.SaveRecalcState(ctx, recalcAt))

	gotSync, err := store.LoadSyncState(ctx)
	require.NoError(t, err)
	require.NotNil(t, gotSync)
	assert.True(t, gotSync.Equal(syncAt), "sub-day precision must survive")

	gotRecalc, err := store.LoadRecalcState(ctx)
	require.NoError(t, err)
	require.NotNil(t, gotRecalc)
	assert.True(t, gotRecalc.Equal(recalcAt))
}

// =============================================================================
// JOB RATES
// =============================================================================

func TestJobRates_SaveReplacesMergeAdds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveJobRates(ctx, revenue.RateTable{
		"Engineer": {Cost: "500", Revenue: "800"},
		"Designer": {Cost: "400", Revenue: "650"},
	}))

	// Merging observed titles adds new entries without touching existing.
	require.NoError(t, store.MergeJobTitles(ctx, []string{"Engineer", "Analyst"}))

	rates, err := store.LoadJobRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, revenue.Rate{Cost: "500", Revenue: "800"}, rates["Engineer"])
	assert.Equal(t, revenue.Rate{}, rates["Analyst"])

	// A full save replaces the table outright.
	require.NoError(t, store.SaveJobRates(ctx, revenue.RateTable{"Engineer": {Revenue: "900"}}))
	rates, err = store.LoadJobRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "900", rates["Engineer"].Revenue)
}

// =============================================================================
// AGGREGATE CACHE
// =============================================================================

func sampleAggregates(t *testing.T) revenue.Aggregates {
	t.Helper()
	return revenue.Aggregates{
		"Alpha": {
			TotalRevenue: decimal.NewFromInt(1200),
			TotalHours:   decimal.NewFromInt(12),
			Daily: []revenue.DayTotals{
				{Date: day(t, "2024-03-01"), Hours: decimal.NewFromInt(8),
					Revenue: decimal.NewFromInt(800), Employees: []string{"Bob"}},
				{Date: day(t, "2024-03-02"), Hours: decimal.NewFromInt(4),
					Revenue: decimal.NewFromInt(400), Employees: []string{"Bob"}},
			},
		},
	}
}

func TestAggregates_RoundTripExact(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveAggregates(ctx, sampleAggregates(t)))

	loaded, err := store.LoadAggregates(ctx)
	require.NoError(t, err)
	require.Contains(t, loaded, "Alpha")
	alpha := loaded["Alpha"]
	assert.True(t, alpha.TotalRevenue.Equal(decimal.NewFromInt(1200)), "decimal amounts must reconstruct exactly")
	require.Len(t, alpha.Daily, 2)
	assert.Equal(t, day(t, "2024-03-01"), alpha.Daily[0].Date)
	assert.Equal(t, []string{"Bob"}, alpha.Daily[0].Employees)
}

func TestAggregatesRange_FilterAndFallback(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveAggregates(ctx, sampleAggregates(t)))

	// In-range: totals recomputed over the kept days.
	got, err := store.LoadAggregatesRange(ctx, day(t, "2024-03-02"), day(t, "2024-03-02"))
	require.NoError(t, err)
	require.Contains(t, got, "Alpha")
	assert.True(t, got["Alpha"].TotalHours.Equal(decimal.NewFromInt(4)))

	// Out of range entirely: the full cache comes back instead of nothing.
	got, err = store.LoadAggregatesRange(ctx, day(t, "2030-01-01"), day(t, "2030-12-31"))
	require.NoError(t, err)
	require.Contains(t, got, "Alpha")
	assert.True(t, got["Alpha"].TotalHours.Equal(decimal.NewFromInt(12)))
}

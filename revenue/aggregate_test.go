package revenue_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/insight-engine/dataset"
	"github.com/meridian/insight-engine/revenue"
)

func dayTotals(date string, hours, rev int64, employees ...string) revenue.DayTotals {
	return revenue.DayTotals{
		Date:      day(date),
		Hours:     decimal.NewFromInt(hours),
		Revenue:   decimal.NewFromInt(rev),
		Employees: employees,
	}
}

// =============================================================================
// DELTA MERGING
// =============================================================================

func TestMergeDelta_OverlappingDateSums(t *testing.T) {
	// GIVEN: A cached day and a delta recomputed for the same day
	cached := revenue.Aggregates{
		"Alpha": {
			TotalRevenue: decimal.NewFromInt(800),
			TotalHours:   decimal.NewFromInt(8),
			Daily:        []revenue.DayTotals{dayTotals("2024-03-01", 8, 800, "Bob")},
		},
	}
	delta := revenue.Aggregates{
		"Alpha": {Daily: []revenue.DayTotals{dayTotals("2024-03-01", 2, 200, "Eve")}},
	}

	// WHEN: Merging
	out := revenue.MergeDelta(cached, delta)

	// THEN: The overlapping day summed and totals were rebuilt from the days
	alpha := out["Alpha"]
	require.Len(t, alpha.Daily, 1)
	assertDecimal(t, 10, alpha.Daily[0].Hours)
	assertDecimal(t, 1000, alpha.Daily[0].Revenue)
	assert.Equal(t, []string{"Bob", "Eve"}, alpha.Daily[0].Employees)
	assertDecimal(t, 10, alpha.TotalHours)
	assertDecimal(t, 1000, alpha.TotalRevenue)
}

func TestMergeDelta_NewDatesAppendInOrder(t *testing.T) {
	cached := revenue.Aggregates{
		"Alpha": {Daily: []revenue.DayTotals{dayTotals("2024-03-02", 4, 400)}},
	}
	delta := revenue.Aggregates{
		"Alpha": {Daily: []revenue.DayTotals{
			dayTotals("2024-03-01", 8, 800),
			dayTotals("2024-03-03", 2, 200),
		}},
	}

	out := revenue.MergeDelta(cached, delta)

	alpha := out["Alpha"]
	require.Len(t, alpha.Daily, 3)
	assert.Equal(t, day("2024-03-01"), alpha.Daily[0].Date)
	assert.Equal(t, day("2024-03-02"), alpha.Daily[1].Date)
	assert.Equal(t, day("2024-03-03"), alpha.Daily[2].Date)
	assertDecimal(t, 14, alpha.TotalHours)
	assertDecimal(t, 1400, alpha.TotalRevenue)
}

func TestMergeDelta_NewProjectAdded(t *testing.T) {
	cached := revenue.Aggregates{
		"Alpha": {Daily: []revenue.DayTotals{dayTotals("2024-03-01", 8, 800)}},
	}
	delta := revenue.Aggregates{
		"Beta": {Daily: []revenue.DayTotals{dayTotals("2024-03-01", 3, 300)}},
	}

	out := revenue.MergeDelta(cached, delta)

	require.Len(t, out, 2)
	assertDecimal(t, 300, out["Beta"].TotalRevenue)
}

// =============================================================================
// RANGE FILTERING
// =============================================================================

func TestFilterByRange_RecomputesTotalsOverSubset(t *testing.T) {
	aggs := revenue.Aggregates{
		"Alpha": {
			TotalRevenue: decimal.NewFromInt(1400),
			TotalHours:   decimal.NewFromInt(14),
			Daily: []revenue.DayTotals{
				dayTotals("2024-03-01", 8, 800),
				dayTotals("2024-03-02", 4, 400),
				dayTotals("2024-03-03", 2, 200),
			},
		},
	}

	out := revenue.FilterByRange(aggs, day("2024-03-02"), day("2024-03-03"))

	alpha := out["Alpha"]
	require.Len(t, alpha.Daily, 2)
	assertDecimal(t, 6, alpha.TotalHours)
	assertDecimal(t, 600, alpha.TotalRevenue)
}

func TestFilterByRange_ProjectsOutOfRangeDropped(t *testing.T) {
	aggs := revenue.Aggregates{
		"Alpha": {Daily: []revenue.DayTotals{dayTotals("2024-03-01", 8, 800)}},
		"Beta":  {Daily: []revenue.DayTotals{dayTotals("2024-06-01", 4, 400)}},
	}

	out := revenue.FilterByRange(aggs, day("2024-05-01"), day("2024-07-01"))

	assert.NotContains(t, out, "Alpha")
	assert.Contains(t, out, "Beta")
}

func TestFilterByRange_OpenBounds(t *testing.T) {
	aggs := revenue.Aggregates{
		"Alpha": {Daily: []revenue.DayTotals{
			dayTotals("2024-03-01", 8, 800),
			dayTotals("2024-03-05", 4, 400),
		}},
	}

	// Only a lower bound: everything from the 5th onwards.
	out := revenue.FilterByRange(aggs, day("2024-03-05"), dataset.Day{})
	require.Contains(t, out, "Alpha")
	require.Len(t, out["Alpha"].Daily, 1)
	assert.Equal(t, day("2024-03-05"), out["Alpha"].Daily[0].Date)
}

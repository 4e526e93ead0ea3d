/*
rates.go - User-maintained job-title rate table

PURPOSE:
  Maps a job title to its cost and revenue per 8-hour day. The table is
  edited by operations users, so values are kept as the strings they typed;
  parsing happens at computation time and anything non-numeric reads as
  zero rather than erroring.

LIFECYCLE:
  Independent from the snapshot. Job titles observed on employee records
  are added with empty rates; entries are never silently removed.
*/
package revenue

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/meridian/insight-engine/dataset"
)

// UnknownJobTitle is the bucket for employees whose title cannot be
// resolved. It carries no rate unless the user configures one.
const UnknownJobTitle = "Unknown"

// Rate is the configured cost and revenue per 8-hour day for one job title,
// as entered by the user.
type Rate struct {
	Cost    string `json:"cost"`
	Revenue string `json:"revenue"`
}

// RateTable maps job title to its configured rate.
type RateTable map[string]Rate

// DailyRevenue returns the revenue-per-day rate for a title. Absent titles
// and empty or non-numeric values read as zero.
func (rt RateTable) DailyRevenue(title string) decimal.Decimal {
	return parseRate(rt[title].Revenue)
}

// DailyCost returns the cost-per-day rate for a title, zero when unset.
func (rt RateTable) DailyCost(title string) decimal.Decimal {
	return parseRate(rt[title].Cost)
}

func parseRate(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// AddTitles adds the given titles with empty rates where missing. Existing
// entries are never overwritten by this path.
func (rt RateTable) AddTitles(titles []string) {
	for _, title := range titles {
		if title == "" {
			continue
		}
		if _, ok := rt[title]; !ok {
			rt[title] = Rate{}
		}
	}
}

// Titles returns the configured titles in sorted order.
func (rt RateTable) Titles() []string {
	titles := make([]string, 0, len(rt))
	for t := range rt {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}

// =============================================================================
// JOB TITLE RESOLUTION
// =============================================================================

// JobTitle extracts an employee's display job title. A direct job_title
// field wins; otherwise the [id, title] composite job_id decodes to its
// label; anything else is UnknownJobTitle.
func JobTitle(employee dataset.Record) string {
	if title, ok := employee.String("job_title"); ok && title != "" {
		return title
	}
	if v, ok := employee["job_id"]; ok {
		if _, label, ok := dataset.DecodeRef(v); ok && label != "" {
			return label
		}
	}
	return UnknownJobTitle
}

// HarvestTitles collects the distinct job titles observed on employee
// records, for additive merge into the rate table. The Unknown bucket is
// not harvested; it only exists when an operator configures it explicitly.
func HarvestTitles(employees dataset.Collection) []string {
	seen := make(map[string]bool)
	var titles []string
	for _, emp := range employees.Records {
		title := JobTitle(emp)
		if title == UnknownJobTitle || seen[title] {
			continue
		}
		seen[title] = true
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles
}

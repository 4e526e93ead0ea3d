/*
aggregate.go - Derived per-project financial aggregates

PURPOSE:
  ProjectFinancials is the Revenue Engine's output: total revenue and hours
  per project with a per-day breakdown. Aggregates are derived state -
  always recomputable from the snapshot plus the rate table - and are
  persisted as a cache keyed by project name.

INVARIANT:
  Totals are always the sum over the daily entries. After any merge or
  filter the totals are recomputed from the daily data, never incremented
  in place, so overlapping incremental windows cannot double-count.
*/
package revenue

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/meridian/insight-engine/dataset"
)

// DayTotals is one day's activity on a project.
type DayTotals struct {
	Date    dataset.Day     `json:"date"`
	Hours   decimal.Decimal `json:"hours"`
	Revenue decimal.Decimal `json:"revenue"`

	// Distinct contributors for the day, sorted.
	Employees []string `json:"employees,omitempty"`
	Tasks     []string `json:"tasks,omitempty"`
}

// ProjectFinancials is the per-project aggregate with its daily breakdown,
// daily entries ascending by date.
type ProjectFinancials struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalHours   decimal.Decimal `json:"total_hours"`
	Daily        []DayTotals     `json:"daily_data"`
}

// Aggregates maps project name to its financials.
type Aggregates map[string]ProjectFinancials

// =============================================================================
// DERIVATION HELPERS
// =============================================================================

// recomputeTotals rebuilds the totals from the daily entries.
func (p *ProjectFinancials) recomputeTotals() {
	p.TotalRevenue = decimal.Zero
	p.TotalHours = decimal.Zero
	for _, d := range p.Daily {
		p.TotalRevenue = p.TotalRevenue.Add(d.Revenue)
		p.TotalHours = p.TotalHours.Add(d.Hours)
	}
}

func (p *ProjectFinancials) sortDaily() {
	sort.Slice(p.Daily, func(i, j int) bool { return p.Daily[i].Date.Before(p.Daily[j].Date) })
}

// MergeDelta folds incrementally computed aggregates into a cached set:
// overlapping dates sum, new dates append, contributor sets union, and
// totals are recomputed from the merged daily data.
func MergeDelta(cached, delta Aggregates) Aggregates {
	out := make(Aggregates, len(cached)+len(delta))
	for name, p := range cached {
		out[name] = p
	}
	for name, d := range delta {
		base, ok := out[name]
		if !ok {
			d.recomputeTotals()
			out[name] = d
			continue
		}

		byDate := make(map[string]int, len(base.Daily))
		for i, day := range base.Daily {
			byDate[day.Date.String()] = i
		}
		for _, day := range d.Daily {
			if i, ok := byDate[day.Date.String()]; ok {
				merged := base.Daily[i]
				merged.Hours = merged.Hours.Add(day.Hours)
				merged.Revenue = merged.Revenue.Add(day.Revenue)
				merged.Employees = unionSorted(merged.Employees, day.Employees)
				merged.Tasks = unionSorted(merged.Tasks, day.Tasks)
				base.Daily[i] = merged
				continue
			}
			base.Daily = append(base.Daily, day)
		}
		base.sortDaily()
		base.recomputeTotals()
		out[name] = base
	}
	return out
}

// FilterByRange restricts each project's daily data to [from, to] (zero
// bounds are open) and recomputes totals over the filtered subset. Projects
// left with no days in range are dropped.
func FilterByRange(aggs Aggregates, from, to dataset.Day) Aggregates {
	out := make(Aggregates)
	for name, p := range aggs {
		var kept []DayTotals
		for _, day := range p.Daily {
			if !from.IsZero() && day.Date.Before(from) {
				continue
			}
			if !to.IsZero() && day.Date.After(to) {
				continue
			}
			kept = append(kept, day)
		}
		if len(kept) == 0 {
			continue
		}
		filtered := ProjectFinancials{Daily: kept}
		filtered.recomputeTotals()
		out[name] = filtered
	}
	return out
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

/*
engine.go - Per-project revenue and hour derivation

PURPOSE:
  Joins three loosely coupled datasets - timesheet lines, employee records
  and the user-edited rate table - into per-project, per-day revenue and
  hour totals.

ALGORITHM (per project):
  1. Select the project's timesheet lines (optionally within a date range)
  2. No lines -> the project does not appear (absence means zero activity)
  3. Resolve each line's employee by name, falling back to the id-link
     column detected in the timesheet schema
  4. Resolve the employee's job title; look up its revenue-per-day rate
  5. Line revenue = (hours / 8) * daily rate  (8-hour workday conversion)
  6. Accumulate totals and per-day buckets with contributor sets

JOIN-MISS POLICY:
  A line whose employee cannot be resolved contributes neither hours nor
  revenue; it is logged and the computation continues. Excluding it from
  both keeps hour and revenue totals consistent with each other.

SCHEMA PRECONDITIONS:
  Timesheet data with rows but no date column, or no employee-link column,
  is a *SchemaError - distinct from "no data" and from a stale cache.
*/
package revenue

import (
	"log"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meridian/insight-engine/dataset"
)

// hoursPerDay is the fixed hours-to-days conversion. Rates are configured
// per 8-hour day, so both revenue and day-equivalent figures divide by it.
var hoursPerDay = decimal.NewFromInt(8)

// Range bounds a computation by timesheet date. Zero bounds are open.
type Range struct {
	From dataset.Day
	To   dataset.Day
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d dataset.Day) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// =============================================================================
// ENGINE
// =============================================================================

// Compute derives per-project financials for the whole snapshot, optionally
// restricted to a date range.
func Compute(snap dataset.Snapshot, rates RateTable, rng *Range) (Aggregates, error) {
	keep := func(d dataset.Day) bool { return rng == nil || rng.Contains(d) }
	return compute(snap, rates, keep)
}

// ComputeIncremental derives financials restricted to timesheet lines dated
// strictly after since. The caller merges the result into its cached
// aggregates with MergeDelta.
func ComputeIncremental(snap dataset.Snapshot, rates RateTable, since dataset.Day) (Aggregates, error) {
	keep := func(d dataset.Day) bool { return d.After(since) }
	return compute(snap, rates, keep)
}

func compute(snap dataset.Snapshot, rates RateTable, keep func(dataset.Day) bool) (Aggregates, error) {
	aggs := make(Aggregates)
	if snap.Timesheet.IsEmpty() {
		return aggs, nil
	}

	dateCol, err := findColumn(snap.Timesheet, "date",
		[]string{"date"}, []string{"date"})
	if err != nil {
		return nil, err
	}
	linkCol, err := findColumn(snap.Timesheet, "employee-link",
		[]string{"employee_id", "user_id"}, []string{"employee", "user"})
	if err != nil {
		return nil, err
	}

	emps := indexEmployees(snap.Employees)
	lines := indexTimesheet(snap.Timesheet, snap.Projects)

	for _, project := range snap.Projects.Records {
		name, ok := project.String("name")
		if !ok || name == "" {
			continue
		}
		projectLines := lines[name]
		if len(projectLines) == 0 {
			continue // zero activity: the project does not appear at all
		}

		days := make(map[string]*DayTotals)
		for _, line := range projectLines {
			date, ok := line.Day(dateCol)
			if !ok {
				log.Printf("revenue: %s line with unparsable %s skipped", name, dateCol)
				continue
			}
			if !keep(date) {
				continue
			}

			emp := emps.resolve(line, linkCol)
			if emp == nil {
				// Join miss: no hours, no revenue, keep going.
				log.Printf("revenue: no matching employee for timesheet line on %s (%s)", name, date)
				continue
			}

			hoursF, ok := line.Float("unit_amount")
			if !ok {
				// No measurable activity: the line must not create a day
				// bucket or list contributors.
				log.Printf("revenue: %s line on %s without numeric unit_amount skipped", name, date)
				continue
			}
			hours := decimal.NewFromFloat(hoursF)
			rate := rates.DailyRevenue(JobTitle(emp))
			lineRevenue := hours.Div(hoursPerDay).Mul(rate)

			key := date.String()
			day, ok := days[key]
			if !ok {
				day = &DayTotals{Date: date, Hours: decimal.Zero, Revenue: decimal.Zero}
				days[key] = day
			}
			day.Hours = day.Hours.Add(hours)
			day.Revenue = day.Revenue.Add(lineRevenue)
			if empName, ok := emp.String("name"); ok && empName != "" {
				day.Employees = unionSorted(day.Employees, []string{empName})
			}
			if taskID, ok := dataset.ScalarID(line["task_id"]); ok {
				day.Tasks = unionSorted(day.Tasks, []string{taskID})
			}
		}
		if len(days) == 0 {
			continue
		}

		p := ProjectFinancials{Daily: make([]DayTotals, 0, len(days))}
		for _, day := range days {
			p.Daily = append(p.Daily, *day)
		}
		p.sortDaily()
		p.recomputeTotals()
		aggs[name] = p
	}
	return aggs, nil
}

// =============================================================================
// SCHEMA DETECTION AND JOIN INDEXES
// =============================================================================

// findColumn locates the timesheet column serving one concern. Exact
// candidates are tried in priority order first; only then does a substring
// scan over the sorted field set cover column-name drift across source
// versions (date vs create_date, employee_id vs user_id). Enrichment
// columns ("*_name") never qualify: joins stay on ids, and the column
// choice must not depend on map iteration order.
func findColumn(c dataset.Collection, want string, candidates, needles []string) (string, error) {
	fields := c.Fields()
	sort.Strings(fields)

	present := make(map[string]bool, len(fields))
	for _, f := range fields {
		present[f] = true
	}
	for _, candidate := range candidates {
		if present[candidate] {
			return candidate, nil
		}
	}

	for _, field := range fields {
		lower := strings.ToLower(field)
		if strings.HasSuffix(lower, "_name") {
			continue
		}
		for _, needle := range needles {
			if strings.Contains(lower, needle) {
				return field, nil
			}
		}
	}
	return "", &dataset.SchemaError{Collection: c.Name, Want: want}
}

type employeeIndex struct {
	byName map[string]dataset.Record
	byID   map[string]dataset.Record
}

func indexEmployees(employees dataset.Collection) employeeIndex {
	idx := employeeIndex{
		byName: make(map[string]dataset.Record),
		byID:   make(map[string]dataset.Record),
	}
	for _, emp := range employees.Records {
		if name, ok := emp.String("name"); ok && name != "" {
			idx.byName[name] = emp
		}
		if id, ok := dataset.ScalarID(emp[dataset.FieldID]); ok {
			idx.byID[id] = emp
		}
	}
	return idx
}

// resolve matches a timesheet line to an employee: enriched employee_name
// first, then the id-link column.
func (idx employeeIndex) resolve(line dataset.Record, linkCol string) dataset.Record {
	if name, ok := line.String("employee_name"); ok && name != "" {
		if emp, ok := idx.byName[name]; ok {
			return emp
		}
	}
	if id, ok := dataset.ScalarID(line[linkCol]); ok {
		if emp, ok := idx.byID[id]; ok {
			return emp
		}
	}
	return nil
}

// indexTimesheet buckets timesheet lines by project name. Lines carrying
// only a project_id reference are matched through the projects collection.
func indexTimesheet(timesheet, projects dataset.Collection) map[string][]dataset.Record {
	idToName := make(map[string]string, projects.Len())
	for _, p := range projects.Records {
		name, ok := p.String("name")
		if !ok {
			continue
		}
		if id, ok := dataset.ScalarID(p[dataset.FieldID]); ok {
			idToName[id] = name
		}
	}

	lines := make(map[string][]dataset.Record)
	for _, line := range timesheet.Records {
		name, ok := line.String("project_name")
		if !ok || name == "" {
			if id, idOK := dataset.ScalarID(line["project_id"]); idOK {
				name, ok = idToName[id], true
			}
		}
		if !ok || name == "" {
			continue
		}
		lines[name] = append(lines[name], line)
	}
	return lines
}

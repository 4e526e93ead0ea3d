/*
snapshot.go - The six-collection dataset snapshot

PURPOSE:
  A Snapshot is "all known data as of some instant": one collection per
  source model. It is owned by the cache store - created on first successful
  fetch, then either replaced wholesale or merged incrementally. A merge
  either fully succeeds or the prior snapshot stays authoritative; a
  half-merged snapshot is never observable.
*/
package dataset

// Collection names, fixed by the fetch contract.
const (
	CollectionProjects   = "projects"
	CollectionEmployees  = "employees"
	CollectionSales      = "sales"
	CollectionFinancials = "financials"
	CollectionTimesheet  = "timesheet"
	CollectionTasks      = "tasks"
)

// CollectionNames lists the six collections in their canonical order.
var CollectionNames = []string{
	CollectionProjects,
	CollectionEmployees,
	CollectionSales,
	CollectionFinancials,
	CollectionTimesheet,
	CollectionTasks,
}

// Snapshot is the full dataset at a point in time.
type Snapshot struct {
	Projects   Collection
	Employees  Collection
	Sales      Collection
	Financials Collection
	Timesheet  Collection
	Tasks      Collection
}

// Empty returns a snapshot with six empty, named collections.
func Empty() Snapshot {
	return Snapshot{
		Projects:   Collection{Name: CollectionProjects},
		Employees:  Collection{Name: CollectionEmployees},
		Sales:      Collection{Name: CollectionSales},
		Financials: Collection{Name: CollectionFinancials},
		Timesheet:  Collection{Name: CollectionTimesheet},
		Tasks:      Collection{Name: CollectionTasks},
	}
}

// Collections returns the six collections in canonical order. The pointers
// allow callers to fill a snapshot generically (store loading, merging).
func (s *Snapshot) Collections() []*Collection {
	return []*Collection{
		&s.Projects, &s.Employees, &s.Sales,
		&s.Financials, &s.Timesheet, &s.Tasks,
	}
}

// ByName returns the collection with the given canonical name.
func (s *Snapshot) ByName(name string) *Collection {
	for _, c := range s.Collections() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// IsEmpty reports whether no collection has any records.
func (s Snapshot) IsEmpty() bool {
	for _, c := range s.Collections() {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Merge folds a fetched delta into a cached snapshot, collection by
// collection. On any failure the returned error surfaces and the caller
// must keep using old.
func Merge(old, delta Snapshot) (Snapshot, error) {
	merged := Empty()
	oldCols := old.Collections()
	deltaCols := delta.Collections()
	for i, out := range merged.Collections() {
		name := out.Name
		oc := *oldCols[i]
		dc := *deltaCols[i]
		oc.Name, dc.Name = name, name
		mc, err := MergeCollections(oc, dc)
		if err != nil {
			return Snapshot{}, err
		}
		*out = mc
	}
	return merged, nil
}

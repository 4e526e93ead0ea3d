/*
Package report derives data-quality findings from a snapshot.

PURPOSE:
  Operations users use these reports to spot bookkeeping gaps in the ERP:
  projects and employees with no hours logged, projects marked inactive
  that still carry open tasks, and suspiciously long timesheet entries.
  Pure reads over the snapshot; nothing here mutates state.
*/
package report

import (
	"sort"

	"github.com/meridian/insight-engine/dataset"
)

// Quality is the data-quality report for one snapshot.
type Quality struct {
	ProjectsWithoutHours  []string `json:"projects_without_hours"`
	EmployeesWithoutHours []string `json:"employees_without_hours"`

	// Inactive projects that still have tasks with no end date.
	ClosedProjectsWithOpenTasks []string `json:"closed_projects_with_open_tasks"`
}

// LongEntry is a timesheet line longer than the workday threshold.
type LongEntry struct {
	Employee string      `json:"employee_name"`
	Project  string      `json:"project_name"`
	TaskID   string      `json:"task_id,omitempty"`
	TaskName string      `json:"task_name,omitempty"`
	Date     dataset.Day `json:"date"`
	Hours    float64     `json:"hours"`
}

// =============================================================================
// QUALITY REPORT
// =============================================================================

// BuildQuality computes the data-quality report.
func BuildQuality(snap dataset.Snapshot) Quality {
	loggedProjects := stringSet(snap.Timesheet, "project_name")
	loggedEmployees := stringSet(snap.Timesheet, "employee_name")

	var q Quality
	for _, p := range snap.Projects.Records {
		name, ok := p.String("name")
		if ok && name != "" && !loggedProjects[name] {
			q.ProjectsWithoutHours = append(q.ProjectsWithoutHours, name)
		}
	}
	for _, e := range snap.Employees.Records {
		name, ok := e.String("name")
		if ok && name != "" && !loggedEmployees[name] {
			q.EmployeesWithoutHours = append(q.EmployeesWithoutHours, name)
		}
	}

	openTaskProjects := make(map[string]bool)
	for _, task := range snap.Tasks.Records {
		if task.Has("date_end") {
			continue
		}
		if name, ok := task.String("project_name"); ok && name != "" {
			openTaskProjects[name] = true
		}
	}
	for _, p := range snap.Projects.Records {
		active, hasActive := p["active"].(bool)
		if hasActive && active {
			continue
		}
		if !hasActive {
			continue
		}
		if name, ok := p.String("name"); ok && openTaskProjects[name] {
			q.ClosedProjectsWithOpenTasks = append(q.ClosedProjectsWithOpenTasks, name)
		}
	}

	sort.Strings(q.ProjectsWithoutHours)
	sort.Strings(q.EmployeesWithoutHours)
	sort.Strings(q.ClosedProjectsWithOpenTasks)
	return q
}

// =============================================================================
// LONG ENTRIES
// =============================================================================

// BuildLongEntries lists timesheet lines with more hours than threshold,
// sorted by hours descending. Task names resolve through the tasks
// collection; a line whose task is unknown falls back to its raw task id.
func BuildLongEntries(snap dataset.Snapshot, threshold float64) []LongEntry {
	taskNames := make(map[string]string, snap.Tasks.Len())
	for _, task := range snap.Tasks.Records {
		id, ok := dataset.ScalarID(task[dataset.FieldID])
		if !ok {
			continue
		}
		if name, ok := task.String("name"); ok {
			taskNames[id] = name
		}
	}

	var entries []LongEntry
	for _, line := range snap.Timesheet.Records {
		hours, ok := line.Float("unit_amount")
		if !ok || hours <= threshold {
			continue
		}
		entry := LongEntry{Hours: hours}
		entry.Employee, _ = line.String("employee_name")
		entry.Project, _ = line.String("project_name")
		entry.Date, _ = line.Day("date")
		if id, ok := dataset.ScalarID(line["task_id"]); ok {
			entry.TaskID = id
			if name, ok := taskNames[id]; ok {
				entry.TaskName = name
			} else if _, label, ok := dataset.DecodeRef(line["task_id"]); ok && label != "" {
				entry.TaskName = label
			}
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Hours > entries[j].Hours })
	return entries
}

func stringSet(c dataset.Collection, field string) map[string]bool {
	set := make(map[string]bool)
	for _, r := range c.Records {
		if s, ok := r.String(field); ok && s != "" {
			set[s] = true
		}
	}
	return set
}

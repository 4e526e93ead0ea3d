package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/insight-engine/dataset"
	"github.com/meridian/insight-engine/report"
)

func reportSnapshot() dataset.Snapshot {
	snap := dataset.Empty()
	snap.Projects.Records = []dataset.Record{
		{"id": 10, "name": "Alpha", "active": true},
		{"id": 11, "name": "Dormant", "active": true},
		{"id": 12, "name": "Archived", "active": false},
	}
	snap.Employees.Records = []dataset.Record{
		{"id": 1, "name": "Bob"},
		{"id": 2, "name": "Eve"},
	}
	snap.Tasks.Records = []dataset.Record{
		{"id": 5, "name": "Design", "project_name": "Alpha"},
		{"id": 6, "name": "Cleanup", "project_name": "Archived"},
		{"id": 7, "name": "Done", "project_name": "Archived", "date_end": "2024-02-01"},
	}
	snap.Timesheet.Records = []dataset.Record{
		{"id": 101, "date": "2024-03-01", "employee_name": "Bob",
			"project_name": "Alpha", "unit_amount": 9.5, "task_id": []any{5, "Design"}},
		{"id": 102, "date": "2024-03-02", "employee_name": "Bob",
			"project_name": "Alpha", "unit_amount": 4.0},
	}
	return snap
}

// =============================================================================
// QUALITY REPORT
// =============================================================================

func TestBuildQuality_FindsBookkeepingGaps(t *testing.T) {
	// GIVEN: Projects and employees with and without logged hours, and an
	// inactive project still carrying an open task
	snap := reportSnapshot()

	// WHEN: Building the report
	q := report.BuildQuality(snap)

	// THEN: Each finding lists exactly the offenders, sorted
	assert.Equal(t, []string{"Archived", "Dormant"}, q.ProjectsWithoutHours)
	assert.Equal(t, []string{"Eve"}, q.EmployeesWithoutHours)
	assert.Equal(t, []string{"Archived"}, q.ClosedProjectsWithOpenTasks)
}

func TestBuildQuality_EmptySnapshot(t *testing.T) {
	q := report.BuildQuality(dataset.Empty())
	assert.Empty(t, q.ProjectsWithoutHours)
	assert.Empty(t, q.EmployeesWithoutHours)
	assert.Empty(t, q.ClosedProjectsWithOpenTasks)
}

func TestBuildQuality_ProjectWithoutActiveFlagNotFlaggedClosed(t *testing.T) {
	// A project record lacking the active flag cannot be judged closed.
	snap := dataset.Empty()
	snap.Projects.Records = []dataset.Record{{"id": 10, "name": "Mystery"}}
	snap.Tasks.Records = []dataset.Record{{"id": 5, "name": "Open", "project_name": "Mystery"}}

	q := report.BuildQuality(snap)
	assert.Empty(t, q.ClosedProjectsWithOpenTasks)
}

// =============================================================================
// LONG ENTRIES
// =============================================================================

func TestBuildLongEntries_AboveThresholdSortedDescending(t *testing.T) {
	// GIVEN: Lines of 9.5h, 4h and 12h against an 8h threshold
	snap := reportSnapshot()
	snap.Timesheet.Records = append(snap.Timesheet.Records, dataset.Record{
		"id": 103, "date": "2024-03-03", "employee_name": "Eve",
		"project_name": "Alpha", "unit_amount": 12.0, "task_id": []any{99, "Mystery Task"},
	})

	// WHEN: Building the report
	entries := report.BuildLongEntries(snap, 8)

	// THEN: Only the two long lines appear, longest first
	require.Len(t, entries, 2)
	assert.Equal(t, 12.0, entries[0].Hours)
	assert.Equal(t, "Eve", entries[0].Employee)
	assert.Equal(t, 9.5, entries[1].Hours)
	assert.Equal(t, "Bob", entries[1].Employee)
	assert.Equal(t, "Alpha", entries[1].Project)
}

func TestBuildLongEntries_TaskNameResolution(t *testing.T) {
	snap := reportSnapshot()
	snap.Timesheet.Records = append(snap.Timesheet.Records, dataset.Record{
		"id": 103, "date": "2024-03-03", "employee_name": "Eve",
		"project_name": "Alpha", "unit_amount": 12.0, "task_id": []any{99, "Composite Label"},
	})

	entries := report.BuildLongEntries(snap, 8)
	require.Len(t, entries, 2)

	// Known task id resolves through the tasks collection.
	assert.Equal(t, "5", entries[1].TaskID)
	assert.Equal(t, "Design", entries[1].TaskName)

	// Unknown task id falls back to the composite's own label.
	assert.Equal(t, "99", entries[0].TaskID)
	assert.Equal(t, "Composite Label", entries[0].TaskName)
}

func TestBuildLongEntries_NoneAboveThreshold(t *testing.T) {
	entries := report.BuildLongEntries(reportSnapshot(), 24)
	assert.Empty(t, entries)
}

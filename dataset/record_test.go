package dataset_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/insight-engine/dataset"
)

func TestRecord_OptionalAccessors(t *testing.T) {
	r := dataset.Record{
		"name":        "Bob",
		"unit_amount": 7.5,
		"count":       3,
		"missing":     nil,
	}

	name, ok := r.String("name")
	require.True(t, ok)
	assert.Equal(t, "Bob", name)

	hours, ok := r.Float("unit_amount")
	require.True(t, ok)
	assert.Equal(t, 7.5, hours)

	n, ok := r.Float("count")
	require.True(t, ok)
	assert.Equal(t, 3.0, n)

	_, ok = r.String("missing")
	assert.False(t, ok, "nil value reads as absent")
	_, ok = r.Float("absent")
	assert.False(t, ok)
	assert.False(t, r.Has("missing"))
}

func TestRecord_DayAccessor_AcceptsSourceForms(t *testing.T) {
	cases := map[string]any{
		"plain day":  "2024-01-02",
		"datetime":   "2024-01-02 13:45:00",
		"rfc3339":    "2024-01-02T13:45:00Z",
		"time.Time":  time.Date(2024, 1, 2, 13, 45, 0, 0, time.UTC),
		"Day":        dataset.NewDay(2024, time.January, 2),
	}
	want := dataset.NewDay(2024, time.January, 2)

	for label, v := range cases {
		d, ok := dataset.Record{"date": v}.Day("date")
		require.True(t, ok, label)
		assert.True(t, want.Equal(d), label)
	}

	_, ok := dataset.Record{"date": "not a date"}.Day("date")
	assert.False(t, ok)
}

func TestDecodeRef(t *testing.T) {
	// Native composite
	id, label, ok := dataset.DecodeRef([]any{float64(5), "Senior Engineer"})
	require.True(t, ok)
	assert.Equal(t, float64(5), id)
	assert.Equal(t, "Senior Engineer", label)

	// Normalized string form, as read back from a merged snapshot
	id, label, ok = dataset.DecodeRef(`[5,"Senior Engineer"]`)
	require.True(t, ok)
	assert.Equal(t, float64(5), id)
	assert.Equal(t, "Senior Engineer", label)

	// Scalar passes through
	id, label, ok = dataset.DecodeRef("plain")
	require.True(t, ok)
	assert.Equal(t, "plain", id)
	assert.Equal(t, "", label)

	_, _, ok = dataset.DecodeRef(nil)
	assert.False(t, ok)
}

func TestScalarID(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want string
	}{
		{float64(42), "42"},
		{42, "42"},
		{int64(42), "42"},
		{"42", "42"},
		{[]any{float64(42), "Task name"}, "42"},
		{`[42,"Task name"]`, "42"},
	} {
		got, ok := dataset.ScalarID(tc.in)
		require.True(t, ok)
		assert.Equal(t, tc.want, got)
	}

	_, ok := dataset.ScalarID(nil)
	assert.False(t, ok)
	_, ok = dataset.ScalarID("")
	assert.False(t, ok)
}

func TestDay_JSONRoundTrip(t *testing.T) {
	// Dates must reconstruct exactly from their persisted textual form.
	d := dataset.NewDay(2024, time.March, 9)

	buf, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-09"`, string(buf))

	var back dataset.Day
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.True(t, d.Equal(back))
}

func TestSnapshot_ByNameAndEmpty(t *testing.T) {
	s := dataset.Empty()
	assert.True(t, s.IsEmpty())

	c := s.ByName(dataset.CollectionTimesheet)
	require.NotNil(t, c)
	c.Records = append(c.Records, dataset.Record{"unit_amount": 1.0})
	assert.False(t, s.IsEmpty())
	assert.Nil(t, s.ByName("nope"))
}

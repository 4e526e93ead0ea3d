package dataset

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Day-precision time point
// =============================================================================

// DayFormat is the canonical textual form for persisted dates. Sub-day
// precision is never required downstream, so everything round-trips through
// this form.
const DayFormat = "2006-01-02"

// dayParseForms lists the textual forms the source emits, most specific last.
var dayParseForms = []string{
	DayFormat,
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Day is a date with day granularity, always UTC.
type Day struct {
	Time time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayFrom truncates an instant to its UTC calendar day.
func DayFrom(t time.Time) Day {
	t = t.UTC()
	return NewDay(t.Year(), t.Month(), t.Day())
}

// ParseDay parses any of the source's date forms and truncates to a day.
func ParseDay(s string) (Day, error) {
	for _, form := range dayParseForms {
		if t, err := time.Parse(form, s); err == nil {
			return DayFrom(t), nil
		}
	}
	return Day{}, fmt.Errorf("unrecognized date %q", s)
}

// Comparison
func (d Day) Before(other Day) bool { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool  { return d.Time.After(other.Time) }
func (d Day) Equal(other Day) bool  { return d.Time.Equal(other.Time) }
func (d Day) IsZero() bool          { return d.Time.IsZero() }

func (d Day) AddDays(n int) Day { return DayFrom(d.Time.AddDate(0, 0, n)) }

func (d Day) String() string { return d.Time.Format(DayFormat) }

// MarshalJSON writes the canonical day form.
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON reads any accepted day form.
func (d *Day) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid day literal %s", s)
	}
	parsed, err := ParseDay(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

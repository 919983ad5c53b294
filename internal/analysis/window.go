package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the only accepted textual form of an analysis date.
	DateLayout = "2006-01-02"
	// BaselineDays is the fixed number of days averaged before the analysis date.
	BaselineDays = 6

	lookbackDays = 7
)

// ErrInvalidDateFormat is returned when an analysis date is not a valid YYYY-MM-DD day.
var ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")

// Window describes the fetch range and the day under analysis.
// Start is inclusive and End exclusive; all three are midnight UTC civil days.
type Window struct {
	Start        time.Time
	End          time.Time
	AnalysisDate time.Time
}

// Day truncates t to its calendar day, as observed in t's own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewWindow builds the window around the given analysis day.
func NewWindow(analysisDate time.Time) Window {
	day := Day(analysisDate)
	return Window{
		Start:        day.AddDate(0, 0, -lookbackDays),
		End:          day.AddDate(0, 0, 1),
		AnalysisDate: day,
	}
}

// ResolveWindow parses dateStr or, when empty, uses yesterday relative to now in loc.
func ResolveWindow(dateStr string, now time.Time, loc *time.Location) (Window, error) {
	value := strings.TrimSpace(dateStr)
	if value == "" {
		if loc == nil {
			loc = time.UTC
		}
		return NewWindow(Day(now.In(loc)).AddDate(0, 0, -1)), nil
	}

	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, dateStr)
	}
	return NewWindow(parsed), nil
}

// Contains reports whether day falls within [Start, End).
func (w Window) Contains(day time.Time) bool {
	day = Day(day)
	return !day.Before(w.Start) && day.Before(w.End)
}

// BaselineStart is the first day averaged.
func (w Window) BaselineStart() time.Time {
	return w.AnalysisDate.AddDate(0, 0, -BaselineDays)
}

// BaselineDates lists the averaged days in ascending order.
func (w Window) BaselineDates() []time.Time {
	days := make([]time.Time, 0, BaselineDays)
	for d := w.BaselineStart(); d.Before(w.AnalysisDate); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Period renders the reported range as "<window start> to <analysis date - 1>".
func (w Window) Period() string {
	last := w.AnalysisDate.AddDate(0, 0, -1)
	return fmt.Sprintf("%s to %s", w.Start.Format(DateLayout), last.Format(DateLayout))
}

// LastFetchDay is the inclusive end of the fetch range.
func (w Window) LastFetchDay() time.Time {
	return w.End.AddDate(0, 0, -1)
}

package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveWindowExplicitDate(t *testing.T) {
	w, err := ResolveWindow("2024-06-14", time.Now(), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, day(2024, 6, 14), w.AnalysisDate)
	assert.Equal(t, day(2024, 6, 7), w.Start)
	assert.Equal(t, day(2024, 6, 15), w.End)
	assert.True(t, w.Start.Before(w.AnalysisDate))
	assert.True(t, w.AnalysisDate.Before(w.End))
}

func TestResolveWindowIsDeterministic(t *testing.T) {
	first, err := ResolveWindow("2024-06-14", time.Now(), time.UTC)
	require.NoError(t, err)
	second, err := ResolveWindow("2024-06-14", time.Now().Add(72*time.Hour), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveWindowDefaultsToYesterday(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	w, err := ResolveWindow("", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 6, 14), w.AnalysisDate)
}

func TestResolveWindowUsesReferenceZone(t *testing.T) {
	// 02:00 UTC on the 15th is still the 14th five hours west.
	now := time.Date(2024, 6, 15, 2, 0, 0, 0, time.UTC)
	west := time.FixedZone("UTC-5", -5*3600)

	w, err := ResolveWindow("", now, west)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 6, 13), w.AnalysisDate)

	w, err = ResolveWindow("", now, nil)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 6, 14), w.AnalysisDate)
}

func TestResolveWindowRejectsInvalidDates(t *testing.T) {
	for _, input := range []string{"2024-13-40", "2024-02-30", "14/06/2024", "2024-6-14", "yesterday"} {
		t.Run(input, func(t *testing.T) {
			_, err := ResolveWindow(input, time.Now(), time.UTC)
			require.ErrorIs(t, err, ErrInvalidDateFormat)
		})
	}
}

func TestWindowBaseline(t *testing.T) {
	w := NewWindow(day(2024, 6, 14))

	dates := w.BaselineDates()
	require.Len(t, dates, BaselineDays)
	assert.Equal(t, day(2024, 6, 8), dates[0])
	assert.Equal(t, day(2024, 6, 13), dates[len(dates)-1])
	assert.Equal(t, "2024-06-07 to 2024-06-13", w.Period())
	assert.Equal(t, day(2024, 6, 14), w.LastFetchDay())
}

func TestWindowContains(t *testing.T) {
	w := NewWindow(day(2024, 6, 14))

	assert.True(t, w.Contains(day(2024, 6, 7)))
	assert.True(t, w.Contains(day(2024, 6, 14)))
	assert.True(t, w.Contains(time.Date(2024, 6, 14, 23, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(day(2024, 6, 6)))
	assert.False(t, w.Contains(day(2024, 6, 15)))
}

func TestParseAnalysisType(t *testing.T) {
	cases := map[string]AnalysisType{
		"group":        TypeGroup,
		"grupo":        TypeGroup,
		"TAG":          TypeTag,
		"subscription": TypeSubscription,
	}
	for input, want := range cases {
		got, err := ParseAnalysisType(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseAnalysisType("region")
	require.ErrorIs(t, err, ErrUnknownAnalysisType)

	assert.True(t, TypeTag.NeedsGroupingKey())
	assert.False(t, TypeSubscription.NeedsGroupingKey())
	assert.Equal(t, "ServiceName", TypeGroup.GroupLabel("ServiceName"))
	assert.Equal(t, "Subscription", TypeSubscription.GroupLabel(""))
}

func TestPeriodStartsAtWindowStart(t *testing.T) {
	w, err := ResolveWindow("2024-06-14", time.Now(), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, day(2024, 6, 7), w.Start)
	assert.Equal(t, "2024-06-07 to 2024-06-13", w.Period())

	rows := Analyze([]CostRecord{{GroupKey: "web", Date: day(2024, 6, 14), Cost: decimal.NewFromInt(1)}}, "Project", w)
	require.Len(t, rows, 1)
	assert.Equal(t, w.Period(), rows[0].PeriodOfAverageCalculation)
}

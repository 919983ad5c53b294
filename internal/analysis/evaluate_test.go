package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregateSumsDuplicateDays(t *testing.T) {
	w := NewWindow(day(2024, 6, 14))
	records := []CostRecord{
		{GroupKey: "rg-a", Date: day(2024, 6, 10), Cost: dec("1.5")},
		{GroupKey: "rg-a", Date: day(2024, 6, 10), Cost: dec("2.25")},
		{GroupKey: "rg-a", Date: day(2024, 6, 11), Cost: dec("0.5")},
	}

	groups := Aggregate(records, w)
	require.Len(t, groups, 1)
	assert.True(t, groups["rg-a"][day(2024, 6, 10)].Equal(dec("3.75")))
	assert.True(t, groups["rg-a"][day(2024, 6, 11)].Equal(dec("0.5")))
}

func TestAggregateIgnoresOutOfWindowRecords(t *testing.T) {
	w := NewWindow(day(2024, 6, 14))
	records := []CostRecord{
		{GroupKey: "rg-a", Date: day(2024, 6, 6), Cost: dec("9")},
		{GroupKey: "rg-a", Date: day(2024, 6, 7), Cost: dec("1")},
		{GroupKey: "rg-a", Date: day(2024, 6, 15), Cost: dec("9")},
		{GroupKey: "rg-old", Date: day(2024, 5, 1), Cost: dec("4")},
	}

	groups := Aggregate(records, w)
	require.Len(t, groups, 1)
	assert.Len(t, groups["rg-a"], 1)
	assert.True(t, groups["rg-a"][day(2024, 6, 7)].Equal(dec("1")))
	_, present := groups["rg-old"]
	assert.False(t, present)
}

func TestAggregateNormalisesTimestamps(t *testing.T) {
	w := NewWindow(day(2024, 6, 14))
	records := []CostRecord{
		{GroupKey: "svc", Date: time.Date(2024, 6, 12, 18, 0, 0, 0, time.UTC), Cost: dec("1")},
		{GroupKey: "svc", Date: time.Date(2024, 6, 12, 1, 0, 0, 0, time.UTC), Cost: dec("2")},
	}

	groups := Aggregate(records, w)
	assert.True(t, groups["svc"][day(2024, 6, 12)].Equal(dec("3")))
}

func TestEvaluateEndToEndScenario(t *testing.T) {
	w, err := ResolveWindow("2024-06-14", time.Now(), time.UTC)
	require.NoError(t, err)

	records := []CostRecord{
		{GroupKey: "python_finops", Date: day(2024, 6, 7), Cost: dec("0.03")},
		{GroupKey: "python_finops", Date: day(2024, 6, 8), Cost: dec("0.04")},
		{GroupKey: "python_finops", Date: day(2024, 6, 9), Cost: dec("0.03")},
		{GroupKey: "python_finops", Date: day(2024, 6, 10), Cost: dec("0.03")},
		{GroupKey: "python_finops", Date: day(2024, 6, 11), Cost: dec("0.04")},
		{GroupKey: "python_finops", Date: day(2024, 6, 12), Cost: dec("0.04")},
		{GroupKey: "python_finops", Date: day(2024, 6, 14), Cost: dec("0.052")},
	}

	groups := Aggregate(records, w)
	summary := Evaluate("python_finops", groups["python_finops"], w)

	// 06-07 is fetched but not averaged; 06-13 is missing and counts as zero.
	assert.True(t, summary.AverageCost.Equal(dec("0.03")), summary.AverageCost.String())
	assert.InDelta(t, 0.0141421, summary.StandardDeviation.InexactFloat64(), 1e-6)
	assert.True(t, summary.CostOnAnalysisDate.Equal(dec("0.052")))
	assert.True(t, summary.Alert)
	assert.True(t, summary.CostDifference().Equal(dec("0.022")))
}

func TestEvaluateStrictThreshold(t *testing.T) {
	w := NewWindow(day(2024, 6, 14))
	baseline := DailyCosts{
		day(2024, 6, 8):  dec("0"),
		day(2024, 6, 9):  dec("0"),
		day(2024, 6, 10): dec("0"),
		day(2024, 6, 11): dec("2"),
		day(2024, 6, 12): dec("2"),
		day(2024, 6, 13): dec("2"),
	}

	atThreshold := copyCosts(baseline)
	atThreshold[day(2024, 6, 14)] = dec("2")
	summary := Evaluate("g", atThreshold, w)
	require.True(t, summary.AverageCost.Equal(dec("1")))
	require.True(t, summary.StandardDeviation.Equal(dec("1")), summary.StandardDeviation.String())
	assert.False(t, summary.Alert)

	above := copyCosts(baseline)
	above[day(2024, 6, 14)] = dec("2.0001")
	assert.True(t, Evaluate("g", above, w).Alert)
}

func TestEvaluateMissingDaysCountAsZero(t *testing.T) {
	w := NewWindow(day(2024, 6, 14))
	costs := DailyCosts{day(2024, 6, 13): dec("6")}

	summary := Evaluate("g", costs, w)
	assert.True(t, summary.AverageCost.Equal(dec("1")))
	assert.True(t, summary.CostOnAnalysisDate.IsZero())
	assert.False(t, summary.Alert)
}

func TestEvaluateZeroCostGroup(t *testing.T) {
	w := NewWindow(day(2024, 6, 14))
	records := []CostRecord{
		{GroupKey: "idle", Date: day(2024, 6, 10), Cost: decimal.Zero},
		{GroupKey: "idle", Date: day(2024, 6, 14), Cost: decimal.Zero},
	}

	summaries := EvaluateAll(Aggregate(records, w), w)
	require.Len(t, summaries, 1)
	assert.Equal(t, "idle", summaries[0].GroupKey)
	assert.True(t, summaries[0].AverageCost.IsZero())
	assert.True(t, summaries[0].StandardDeviation.IsZero())
	assert.False(t, summaries[0].Alert)
	assert.True(t, summaries[0].PercentVariation().IsZero())
}

func TestEvaluateAllSortsGroups(t *testing.T) {
	w := NewWindow(day(2024, 6, 14))
	groups := map[string]DailyCosts{
		"zeta":  {day(2024, 6, 14): dec("1")},
		"alpha": {day(2024, 6, 14): dec("1")},
		"mid":   {day(2024, 6, 14): dec("1")},
	}

	summaries := EvaluateAll(groups, w)
	require.Len(t, summaries, 3)
	assert.Equal(t, "alpha", summaries[0].GroupKey)
	assert.Equal(t, "mid", summaries[1].GroupKey)
	assert.Equal(t, "zeta", summaries[2].GroupKey)
	// a lone spike over an all-zero baseline always alerts.
	assert.True(t, summaries[0].Alert)
}

func copyCosts(in DailyCosts) DailyCosts {
	out := make(DailyCosts, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

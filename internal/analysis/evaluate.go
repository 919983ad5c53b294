package analysis

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

var baselineDivisor = decimal.NewFromInt(BaselineDays)

// Evaluate computes the baseline statistics and the alert flag for a single group.
// Days without data count as zero and the divisor is always BaselineDays.
func Evaluate(groupKey string, costs DailyCosts, w Window) GroupSummary {
	baseline := make([]decimal.Decimal, 0, BaselineDays)
	sum := decimal.Zero
	for _, day := range w.BaselineDates() {
		cost := costs[day]
		baseline = append(baseline, cost)
		sum = sum.Add(cost)
	}
	mean := sum.Div(baselineDivisor)

	variance := decimal.Zero
	for _, cost := range baseline {
		delta := cost.Sub(mean)
		variance = variance.Add(delta.Mul(delta))
	}
	stdDev := sqrt(variance.Div(baselineDivisor))

	current := costs[w.AnalysisDate]

	return GroupSummary{
		GroupKey:           groupKey,
		AverageCost:        mean,
		CostOnAnalysisDate: current,
		StandardDeviation:  stdDev,
		Alert:              current.GreaterThan(mean.Add(stdDev)),
	}
}

// EvaluateAll evaluates every aggregated group, ordered by group key.
func EvaluateAll(groups map[string]DailyCosts, w Window) []GroupSummary {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	summaries := make([]GroupSummary, 0, len(keys))
	for _, key := range keys {
		summaries = append(summaries, Evaluate(key, groups[key], w))
	}
	return summaries
}

// decimal has no square root; variance is small enough for float64.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(d.InexactFloat64()))
}

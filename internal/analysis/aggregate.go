package analysis

// Aggregate groups records by key and sums same-day costs, dropping days outside the window.
func Aggregate(records []CostRecord, w Window) map[string]DailyCosts {
	groups := make(map[string]DailyCosts)
	for _, rec := range records {
		day := Day(rec.Date)
		if !w.Contains(day) {
			continue
		}
		costs, ok := groups[rec.GroupKey]
		if !ok {
			costs = make(DailyCosts)
			groups[rec.GroupKey] = costs
		}
		costs[day] = costs[day].Add(rec.Cost)
	}
	return groups
}

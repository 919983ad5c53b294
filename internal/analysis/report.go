package analysis

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	AlertYes = "Yes"
	AlertNo  = "No"
)

// ReportRow is one assembled output line.
type ReportRow struct {
	GroupLabel                 string          `json:"-" yaml:"-"`
	GroupKey                   string          `json:"group" yaml:"group"`
	AverageCost                decimal.Decimal `json:"average_cost" yaml:"average_cost"`
	CostYesterday              decimal.Decimal `json:"cost_yesterday" yaml:"cost_yesterday"`
	StandardDeviation          decimal.Decimal `json:"standard_deviation" yaml:"standard_deviation"`
	CostDifference             decimal.Decimal `json:"cost_difference" yaml:"cost_difference"`
	PercentVariation           decimal.Decimal `json:"percent_variation" yaml:"percent_variation"`
	Alert                      string          `json:"alert" yaml:"alert"`
	PeriodOfAverageCalculation string          `json:"period_of_average_calculation" yaml:"period_of_average_calculation"`
	NumberOfDays               int             `json:"number_of_days" yaml:"number_of_days"`
	AnalysisDate               string          `json:"analysis_date" yaml:"analysis_date"`
}

// Alerted reports whether the row carries an alert.
func (r ReportRow) Alerted() bool {
	return r.Alert == AlertYes
}

// Assemble converts summaries into rows sorted by group key.
func Assemble(summaries []GroupSummary, groupLabel string, w Window) []ReportRow {
	rows := make([]ReportRow, 0, len(summaries))
	period := w.Period()
	analysisDate := w.AnalysisDate.Format(DateLayout)

	for _, s := range summaries {
		alert := AlertNo
		if s.Alert {
			alert = AlertYes
		}
		rows = append(rows, ReportRow{
			GroupLabel:                 groupLabel,
			GroupKey:                   s.GroupKey,
			AverageCost:                s.AverageCost,
			CostYesterday:              s.CostOnAnalysisDate,
			StandardDeviation:          s.StandardDeviation,
			CostDifference:             s.CostDifference(),
			PercentVariation:           s.PercentVariation(),
			Alert:                      alert,
			PeriodOfAverageCalculation: period,
			NumberOfDays:               BaselineDays,
			AnalysisDate:               analysisDate,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].GroupKey < rows[j].GroupKey
	})
	return rows
}

// FilterAlerts keeps only alerted rows, preserving order.
func FilterAlerts(rows []ReportRow) []ReportRow {
	out := make([]ReportRow, 0, len(rows))
	for _, row := range rows {
		if row.Alerted() {
			out = append(out, row)
		}
	}
	return out
}

// CountAlerts returns the number of alerted rows.
func CountAlerts(rows []ReportRow) int {
	n := 0
	for _, row := range rows {
		if row.Alerted() {
			n++
		}
	}
	return n
}

// Columns lists the tabular headers for rows grouped under groupLabel.
func Columns(groupLabel string) []string {
	return []string{
		groupLabel,
		"Average Cost",
		"Cost Yesterday",
		"Standard Deviation",
		"Cost Difference",
		"Percent Variation",
		"Alert",
		"Period of Average Calculation",
		"Number of Days",
		"Analysis Date",
	}
}

// Analyze runs aggregation, evaluation and assembly over raw records.
func Analyze(records []CostRecord, groupLabel string, w Window) []ReportRow {
	return Assemble(EvaluateAll(Aggregate(records, w), w), groupLabel, w)
}

package export

import (
	"errors"
	"fmt"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"
)

// ErrNothingToChart is returned when no group has a positive analysis-date cost.
var ErrNothingToChart = errors.New("no positive costs to chart")

// WritePieChart renders the analysis-date cost distribution of a report as PNG.
func WritePieChart(path string, report Report) error {
	values := make([]chart.Value, 0, len(report.Rows))
	for _, row := range report.Rows {
		cost := row.CostYesterday.InexactFloat64()
		if cost <= 0 {
			continue
		}
		label := row.GroupKey
		if row.Alerted() {
			label += " (!)"
		}
		values = append(values, chart.Value{Value: cost, Label: label})
	}
	if len(values) == 0 {
		return ErrNothingToChart
	}

	if err := ensureDir(path); err != nil {
		return err
	}

	pie := chart.PieChart{
		Title:  fmt.Sprintf("%s cost on %s", report.Subscription, report.AnalysisDate),
		Width:  1024,
		Height: 768,
		Values: values,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return pie.Render(chart.PNG, file)
}

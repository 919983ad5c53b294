package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"azure-cost-alerts/internal/analysis"
)

// WriteCSV stores report rows at full precision.
func WriteCSV(path string, report Report) error {
	rows := make([][]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, []string{
			row.GroupKey,
			row.AverageCost.String(),
			row.CostYesterday.String(),
			row.StandardDeviation.String(),
			row.CostDifference.String(),
			row.PercentVariation.String(),
			row.Alert,
			row.PeriodOfAverageCalculation,
			strconv.Itoa(row.NumberOfDays),
			row.AnalysisDate,
		})
	}
	return WriteRecordsCSV(path, analysis.Columns(report.GroupLabel), rows)
}

// WriteRecordsCSV writes a header and rows, creating parent directories.
func WriteRecordsCSV(path string, header []string, rows [][]string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"azure-cost-alerts/internal/analysis"
)

const maxSheetName = 31

// WriteWorkbook stores one sheet per report with pie charts of average and analysis-date cost.
func WriteWorkbook(path string, reports []Report) error {
	if len(reports) == 0 {
		return fmt.Errorf("no reports to write")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	numeric, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}

	used := make(map[string]int)
	for i, report := range reports {
		sheet := sheetName(report, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}

		if err := writeSheet(f, sheet, report, numeric); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}

	f.SetActiveSheet(0)
	return f.SaveAs(path)
}

func writeSheet(f *excelize.File, sheet string, report Report, numeric int) error {
	header := analysis.Columns(report.GroupLabel)
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return err
	}

	for i, row := range report.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			row.GroupKey,
			row.AverageCost.InexactFloat64(),
			row.CostYesterday.InexactFloat64(),
			row.StandardDeviation.InexactFloat64(),
			row.CostDifference.InexactFloat64(),
			row.PercentVariation.InexactFloat64(),
			row.Alert,
			row.PeriodOfAverageCalculation,
			row.NumberOfDays,
			row.AnalysisDate,
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "J", 18); err != nil {
		return err
	}

	if len(report.Rows) == 0 {
		return nil
	}

	last := len(report.Rows) + 1
	if err := f.SetCellStyle(sheet, "B2", fmt.Sprintf("F%d", last), numeric); err != nil {
		return err
	}

	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	categories := fmt.Sprintf("%s!$A$2:$A$%d", quoted, last)
	charts := []struct {
		anchor string
		column string
		title  string
	}{
		{anchor: "L2", column: "B", title: "Average Cost"},
		{anchor: "L20", column: "C", title: "Cost on " + report.AnalysisDate},
	}
	for _, c := range charts {
		err := f.AddChart(sheet, c.anchor, &excelize.Chart{
			Type: excelize.Pie,
			Series: []excelize.ChartSeries{{
				Name:       fmt.Sprintf("%s!$%s$1", quoted, c.column),
				Categories: categories,
				Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", quoted, c.column, c.column, last),
			}},
			Title:    []excelize.RichTextRun{{Text: c.title}},
			PlotArea: excelize.ChartPlotArea{ShowPercent: true},
			Legend:   excelize.ChartLegend{Position: "right"},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

var invalidSheetChars = strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "-", "*", "-", "[", "(", "]", ")")

func sheetName(report Report, used map[string]int) string {
	name := report.ShortName
	if name == "" {
		name = report.Subscription
	}
	name = strings.Trim(invalidSheetChars.Replace(name), "' ")
	if name == "" {
		name = "Sheet"
	}
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}

	key := strings.ToLower(name)
	used[key]++
	if n := used[key]; n > 1 {
		suffix := fmt.Sprintf("~%d", n)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		name = string(runes) + suffix
		used[strings.ToLower(name)]++
	}
	return name
}

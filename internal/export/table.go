package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"azure-cost-alerts/internal/analysis"
)

// WriteTable renders a report as a console table preceded by a title line.
func WriteTable(w io.Writer, report Report, places int32) error {
	if _, err := fmt.Fprintf(w, "\n%s (%s, period %s)\n", report.Subscription, report.AnalysisDate, report.Period); err != nil {
		return err
	}
	if len(report.Rows) == 0 {
		_, err := fmt.Fprintln(w, "no rows")
		return err
	}

	rows := make([][]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, RowValues(row, places))
	}
	return WriteGrid(w, analysis.Columns(report.GroupLabel), rows)
}

// WriteGrid renders an arbitrary header and rows as a table.
func WriteGrid(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// WriteJSON encodes reports as indented JSON.
func WriteJSON(w io.Writer, reports []Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(reports)
}

// WriteYAML encodes reports as YAML.
func WriteYAML(w io.Writer, reports []Report) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(reports); err != nil {
		return err
	}
	return encoder.Close()
}

// Write renders reports in the requested format: table, json or yaml.
func Write(w io.Writer, format string, reports []Report, places int32) error {
	switch format {
	case "json":
		return WriteJSON(w, reports)
	case "yaml":
		return WriteYAML(w, reports)
	case "", "table":
		for _, report := range reports {
			if err := WriteTable(w, report, places); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

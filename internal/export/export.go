package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"azure-cost-alerts/internal/analysis"
)

// Report is the analysed output of one subscription.
type Report struct {
	Subscription string               `json:"subscription" yaml:"subscription"`
	ShortName    string               `json:"-" yaml:"-"`
	GroupLabel   string               `json:"grouping" yaml:"grouping"`
	AnalysisDate string               `json:"analysis_date" yaml:"analysis_date"`
	Period       string               `json:"period_of_average_calculation" yaml:"period_of_average_calculation"`
	Rows         []analysis.ReportRow `json:"rows" yaml:"rows"`
}

// RowValues renders a report row in column order.
func RowValues(row analysis.ReportRow, places int32) []string {
	return []string{
		row.GroupKey,
		formatDecimal(row.AverageCost, places),
		formatDecimal(row.CostYesterday, places),
		formatDecimal(row.StandardDeviation, places),
		formatDecimal(row.CostDifference, places),
		formatDecimal(row.PercentVariation, places),
		row.Alert,
		row.PeriodOfAverageCalculation,
		strconv.Itoa(row.NumberOfDays),
		row.AnalysisDate,
	}
}

// CSVFileName is "<subscription>_<grouping>_cost_analysis.csv".
func CSVFileName(subscription, grouping string) string {
	return fmt.Sprintf("%s_%s_cost_analysis.csv", safeName(subscription), safeName(grouping))
}

// ChartFileName is "<subscription>_<grouping>_cost_distribution.png".
func ChartFileName(subscription, grouping string) string {
	return fmt.Sprintf("%s_%s_cost_distribution.png", safeName(subscription), safeName(grouping))
}

// WorkbookFileName is "<prefix>_<grouping>_<stamp>.xlsx".
func WorkbookFileName(prefix, grouping, stamp string) string {
	prefix = strings.Trim(safeName(prefix), "-_ ")
	if prefix == "" {
		prefix = "subscriptions"
	}
	return fmt.Sprintf("%s_%s_%s.xlsx", prefix, safeName(grouping), stamp)
}

// TagsFileName is "<subscription>_tags.csv".
func TagsFileName(subscription string) string {
	return fmt.Sprintf("%s_tags.csv", safeName(subscription))
}

var unsafeChars = strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "-", "\"", "-", "<", "-", ">", "-", "|", "-")

func safeName(name string) string {
	return unsafeChars.Replace(strings.TrimSpace(name))
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	if places < 0 {
		return d.String()
	}
	return d.StringFixed(places)
}

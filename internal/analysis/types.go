package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownAnalysisType is returned for an unsupported analysis type name.
var ErrUnknownAnalysisType = errors.New("unknown analysis type")

// AnalysisType selects how costs are grouped upstream.
type AnalysisType string

const (
	TypeGroup        AnalysisType = "group"
	TypeTag          AnalysisType = "tag"
	TypeSubscription AnalysisType = "subscription"
)

// ParseAnalysisType normalises a user supplied type name.
func ParseAnalysisType(raw string) (AnalysisType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "group", "grupo":
		return TypeGroup, nil
	case "tag":
		return TypeTag, nil
	case "subscription":
		return TypeSubscription, nil
	default:
		return "", fmt.Errorf("%w: %q (want group, tag or subscription)", ErrUnknownAnalysisType, raw)
	}
}

// NeedsGroupingKey reports whether the type requires a dimension or tag name.
func (t AnalysisType) NeedsGroupingKey() bool {
	return t == TypeGroup || t == TypeTag
}

// GroupLabel is the column header used for group keys of this type.
func (t AnalysisType) GroupLabel(groupingKey string) string {
	if t == TypeSubscription || strings.TrimSpace(groupingKey) == "" {
		return "Subscription"
	}
	return groupingKey
}

// CostRecord is one upstream cost observation.
type CostRecord struct {
	GroupKey string
	Date     time.Time
	Cost     decimal.Decimal
}

// DailyCosts maps a civil day (see Day) to the summed cost of that day.
type DailyCosts map[time.Time]decimal.Decimal

// GroupSummary holds the statistics produced for one group.
type GroupSummary struct {
	GroupKey           string
	AverageCost        decimal.Decimal
	CostOnAnalysisDate decimal.Decimal
	StandardDeviation  decimal.Decimal
	Alert              bool
}

// Threshold is the value the analysis-date cost must exceed to alert.
func (s GroupSummary) Threshold() decimal.Decimal {
	return s.AverageCost.Add(s.StandardDeviation)
}

// CostDifference is the analysis-date cost minus the average.
func (s GroupSummary) CostDifference() decimal.Decimal {
	return s.CostOnAnalysisDate.Sub(s.AverageCost)
}

// PercentVariation is CostDifference relative to the average, zero when the average is zero.
func (s GroupSummary) PercentVariation() decimal.Decimal {
	if s.AverageCost.IsZero() {
		return decimal.Zero
	}
	return s.CostDifference().Div(s.AverageCost).Mul(hundred)
}

var hundred = decimal.NewFromInt(100)

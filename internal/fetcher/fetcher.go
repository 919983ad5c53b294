package fetcher

import (
	"context"
	"errors"

	"azure-cost-alerts/internal/analysis"
)

var (
	// ErrUpstreamAuth marks credential or authorisation failures against a cost API.
	ErrUpstreamAuth = errors.New("upstream authentication failed")
	// ErrUpstreamRequest marks any other failed upstream call.
	ErrUpstreamRequest = errors.New("upstream request failed")
)

// Query describes one subscription's cost request.
type Query struct {
	SubscriptionID   string
	SubscriptionName string
	Type             analysis.AnalysisType
	GroupingKey      string
	Window           analysis.Window
	Token            string
}

// CostRecordSource retrieves daily cost records for a subscription.
type CostRecordSource interface {
	FetchCosts(ctx context.Context, q Query) ([]analysis.CostRecord, error)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"azure-cost-alerts/internal/alerting"
	"azure-cost-alerts/internal/analysis"
	"azure-cost-alerts/internal/fetcher"
	"azure-cost-alerts/internal/metrics"
	"azure-cost-alerts/internal/subscriptions"
)

// Request describes one analysis pass over a set of subscriptions.
type Request struct {
	Type        analysis.AnalysisType
	GroupingKey string
	Window      analysis.Window
	Token       string
	AlertOnly   bool
}

// GroupLabel is the header used for group keys.
func (r Request) GroupLabel() string {
	return r.Type.GroupLabel(r.GroupingKey)
}

// Result is the outcome for one subscription. Err is set when the subscription was skipped.
type Result struct {
	Subscription subscriptions.Subscription
	Rows         []analysis.ReportRow
	Groups       int
	Alerts       int
	Err          error
}

// Service orchestrates fetching, analysis, alerting and metrics.
type Service struct {
	source   fetcher.CostRecordSource
	notifier alerting.Notifier
	recorder *metrics.Recorder
	logger   zerolog.Logger
}

// New constructs the analysis service. notifier and recorder may be nil.
func New(source fetcher.CostRecordSource, notifier alerting.Notifier, recorder *metrics.Recorder, logger zerolog.Logger) *Service {
	if notifier == nil {
		notifier = alerting.Nop{}
	}
	return &Service{
		source:   source,
		notifier: notifier,
		recorder: recorder,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// AnalyzeSubscription runs the full pipeline for one subscription.
func (s *Service) AnalyzeSubscription(ctx context.Context, sub subscriptions.Subscription, req Request) Result {
	logger := s.logger.With().Str("subscription", sub.Name).Logger()
	result := Result{Subscription: sub}

	started := time.Now()
	records, err := s.source.FetchCosts(ctx, fetcher.Query{
		SubscriptionID:   sub.ID,
		SubscriptionName: sub.Name,
		Type:             req.Type,
		GroupingKey:      req.GroupingKey,
		Window:           req.Window,
		Token:            req.Token,
	})
	if err != nil {
		result.Err = fmt.Errorf("fetch costs for %s: %w", sub.Name, err)
		logger.Error().Err(err).Msg("subscription skipped")
		s.recorder.ObserveFailure(sub.Name)
		return result
	}

	label := req.GroupLabel()
	rows := analysis.Analyze(records, label, req.Window)
	result.Groups = len(rows)
	result.Alerts = analysis.CountAlerts(rows)

	s.recorder.ResetSubscription(sub.Name)
	for _, row := range rows {
		s.recorder.ObserveRow(sub.Name, row)
		logger.Info().
			Str("group", row.GroupKey).
			Str("average_cost", row.AverageCost.StringFixed(4)).
			Str("cost_on_analysis_date", row.CostYesterday.StringFixed(4)).
			Str("standard_deviation", row.StandardDeviation.StringFixed(4)).
			Str("alert", row.Alert).
			Msg("group evaluated")
	}

	if result.Alerts > 0 {
		logger.Info().Int("alerts", result.Alerts).Msg("alerts found")
		note := alerting.Notification{
			Subscription: sub.Name,
			GroupLabel:   label,
			AnalysisDate: req.Window.AnalysisDate.Format(analysis.DateLayout),
			Period:       req.Window.Period(),
			Alerts:       analysis.FilterAlerts(rows),
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			logger.Error().Err(err).Msg("failed to dispatch alert")
		}
	} else {
		logger.Info().Msg("no alerts found")
	}

	if req.AlertOnly {
		rows = analysis.FilterAlerts(rows)
	}
	result.Rows = rows

	logger.Debug().
		Int("records", len(records)).
		Int("groups", result.Groups).
		Dur("elapsed", time.Since(started)).
		Msg("subscription analysed")
	return result
}

// RunAll analyses subscriptions with at most workers in flight. Results keep the input order;
// a failing subscription never stops the others.
func (s *Service) RunAll(ctx context.Context, subs []subscriptions.Subscription, req Request, workers int) []Result {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sub := range subs {
		g.Go(func() error {
			results[i] = s.AnalyzeSubscription(gctx, sub, req)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Failed counts results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

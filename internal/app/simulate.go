package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"azure-cost-alerts/internal/analysis"
	"azure-cost-alerts/internal/config"
	"azure-cost-alerts/internal/export"
	"azure-cost-alerts/internal/fetcher"
	"azure-cost-alerts/internal/service"
	"azure-cost-alerts/internal/subscriptions"
)

// defaultSimulateLabel heads the group column when no label is given.
const defaultSimulateLabel = "Group"

// SimulateOptions configure an offline run over a local records file.
type SimulateOptions struct {
	File       string
	GroupLabel string
	Date       string
	AlertOnly  bool
	Output     string
}

// Simulate runs the analysis core over a "group,date,cost" CSV file without any cloud access.
// Alerts are dispatched when alerting is enabled.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if strings.TrimSpace(opts.File) == "" {
		return errors.New("records file is required")
	}
	if opts.Output != "" {
		if err := config.ValidateFormat(opts.Output); err != nil {
			return err
		}
	}
	cfg := a.Config()
	logger := a.runLogger()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	window, err := analysis.ResolveWindow(opts.Date, a.now(), loc)
	if err != nil {
		return err
	}

	source, err := fetcher.LoadStatic(opts.File)
	if err != nil {
		return err
	}

	label := strings.TrimSpace(opts.GroupLabel)
	if label == "" {
		label = defaultSimulateLabel
	}
	req := service.Request{Type: analysis.TypeGroup, GroupingKey: label, Window: window, AlertOnly: opts.AlertOnly}

	sub := subscriptions.Subscription{
		Name: strings.TrimSuffix(filepath.Base(opts.File), filepath.Ext(opts.File)),
		ID:   "simulation",
	}
	svc := service.New(source, a.newNotifier(cfg), nil, logger)
	result := svc.AnalyzeSubscription(ctx, sub, req)
	if result.Err != nil {
		return result.Err
	}

	format := opts.Output
	if format == "" {
		format = cfg.Export.Format
	}
	return export.Write(a.Stdout, format, buildReports([]service.Result{result}, req, ""), cfg.Export.DecimalPlaces)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"azure-cost-alerts/internal/analysis"
	"azure-cost-alerts/internal/config"
	"azure-cost-alerts/internal/export"
	"azure-cost-alerts/internal/metrics"
	"azure-cost-alerts/internal/service"
	"azure-cost-alerts/internal/subscriptions"
)

const workbookStampLayout = "20060102_150405"

// AnalyzeOptions configure one analysis run. Zero values fall back to configuration.
type AnalyzeOptions struct {
	Prefix      string
	Type        analysis.AnalysisType
	GroupingKey string
	Date        string
	AlertOnly   bool
	CSV         bool
	XLSX        bool
	Chart       bool
	Output      string
	Provider    string
	Workers     int
}

// Validate checks argument combinations before any upstream call.
func (o AnalyzeOptions) Validate() error {
	if o.Type.NeedsGroupingKey() && o.GroupingKey == "" {
		return fmt.Errorf("grouping key is required for %s analysis", o.Type)
	}
	if o.Output != "" {
		if err := config.ValidateFormat(o.Output); err != nil {
			return err
		}
	}
	return nil
}

// Analyze runs the cost anomaly analysis once.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	_, err := a.analyze(ctx, a.Config(), opts, nil, a.now())
	return err
}

func (a *App) analyze(ctx context.Context, cfg *config.Config, opts AnalyzeOptions, rec *metrics.Recorder, now time.Time) ([]service.Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	cfg, err := withProvider(cfg, opts.Provider)
	if err != nil {
		return nil, err
	}
	logger := a.runLogger()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	window, err := analysis.ResolveWindow(opts.Date, now, loc)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("provider", cfg.Analysis.Provider).
		Str("type", string(opts.Type)).
		Str("grouping_key", opts.GroupingKey).
		Str("analysis_date", window.AnalysisDate.Format(analysis.DateLayout)).
		Time("window_start", window.Start).
		Time("window_end", window.End).
		Msg("analysis window resolved")

	be, err := a.newBackend(ctx, cfg, rec, logger)
	if err != nil {
		return nil, err
	}

	token, err := be.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	subs, err := subscriptions.Discover(ctx, be.lister, opts.Prefix, logger)
	if err != nil {
		if errors.Is(err, subscriptions.ErrEmptySubscriptionSet) {
			logger.Warn().Str("prefix", opts.Prefix).Msg("no subscriptions matched prefix")
		}
		return nil, err
	}

	req := service.Request{
		Type:        opts.Type,
		GroupingKey: opts.GroupingKey,
		Window:      window,
		Token:       token,
		AlertOnly:   opts.AlertOnly,
	}
	svc := service.New(be.source, a.newNotifier(cfg), rec, logger)
	results := svc.RunAll(ctx, subs, req, cfg.ResolveWorkers(opts.Workers))

	reports := buildReports(results, req, subscriptions.CommonPrefix(subs))
	if err := a.writeReports(cfg, opts, reports, subscriptions.CommonPrefix(subs), req.GroupLabel(), now, logger); err != nil {
		return results, err
	}

	if be.client != nil {
		logger.Info().Int("requests", be.client.Requests()).Msg("upstream requests issued")
	}
	rec.MarkRun(now)

	if failed := service.Failed(results); failed > 0 {
		logger.Error().Int("failed", failed).Int("subscriptions", len(results)).Msg("analysis finished with failures")
		return results, fmt.Errorf("%w: %d of %d", ErrSubscriptionsFailed, failed, len(results))
	}
	logger.Info().Int("subscriptions", len(results)).Msg("analysis finished")
	return results, nil
}

func buildReports(results []service.Result, req service.Request, prefix string) []export.Report {
	reports := make([]export.Report, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		reports = append(reports, export.Report{
			Subscription: res.Subscription.Name,
			ShortName:    subscriptions.ShortName(res.Subscription.Name, prefix),
			GroupLabel:   req.GroupLabel(),
			AnalysisDate: req.Window.AnalysisDate.Format(analysis.DateLayout),
			Period:       req.Window.Period(),
			Rows:         res.Rows,
		})
	}
	return reports
}

func (a *App) writeReports(cfg *config.Config, opts AnalyzeOptions, reports []export.Report, prefix, label string, now time.Time, logger zerolog.Logger) error {
	format := opts.Output
	if format == "" {
		format = cfg.Export.Format
	}
	if err := export.Write(a.Stdout, format, reports, cfg.Export.DecimalPlaces); err != nil {
		return err
	}

	dir := cfg.Export.OutputDir
	if opts.CSV || cfg.Export.CSV {
		for _, report := range reports {
			path := filepath.Join(dir, export.CSVFileName(report.Subscription, label))
			if err := export.WriteCSV(path, report); err != nil {
				return err
			}
			logger.Info().Str("file", path).Msg("csv report written")
		}
	}
	if opts.Chart || cfg.Export.Chart {
		for _, report := range reports {
			path := filepath.Join(dir, export.ChartFileName(report.Subscription, label))
			err := export.WritePieChart(path, report)
			if errors.Is(err, export.ErrNothingToChart) {
				logger.Debug().Str("subscription", report.Subscription).Msg("no cost to chart")
				continue
			}
			if err != nil {
				return err
			}
			logger.Info().Str("file", path).Msg("chart written")
		}
	}
	if (opts.XLSX || cfg.Export.XLSX) && len(reports) > 0 {
		path := filepath.Join(dir, export.WorkbookFileName(prefix, label, now.Format(workbookStampLayout)))
		if err := export.WriteWorkbook(path, reports); err != nil {
			return err
		}
		logger.Info().Str("file", path).Int("sheets", len(reports)).Msg("workbook written")
	}
	return nil
}

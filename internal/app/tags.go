package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"azure-cost-alerts/internal/export"
	"azure-cost-alerts/internal/subscriptions"
	"azure-cost-alerts/internal/tagexport"
)

// TagsOptions configure the tag inventory.
type TagsOptions struct {
	Prefix string
	CSV    bool
}

// Tags lists resource tags for every subscription matching the prefix.
func (a *App) Tags(ctx context.Context, opts TagsOptions) error {
	cfg := a.Config()
	if strings.ToLower(cfg.Analysis.Provider) != "azure" {
		return fmt.Errorf("tag inventory is only available for azure, provider is %q", cfg.Analysis.Provider)
	}
	logger := a.runLogger()

	table := tagexport.SupportTable{}
	if cfg.Tags.SupportTable != "" {
		loaded, err := tagexport.LoadSupportTable(cfg.Tags.SupportTable)
		if err != nil {
			return err
		}
		table = loaded
	}

	be, err := a.newBackend(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	if be.client == nil {
		return errors.New("tag inventory needs a management api client")
	}
	token, err := be.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	subs, err := subscriptions.Discover(ctx, be.lister, opts.Prefix, logger)
	if err != nil {
		if errors.Is(err, subscriptions.ErrEmptySubscriptionSet) {
			logger.Warn().Str("prefix", opts.Prefix).Msg("no subscriptions matched prefix")
		}
		return err
	}

	lister := tagexport.NewLister(be.client, cfg.Azure.ManagementURL, cfg.Azure.ResourcesAPIVersion, logger)
	failed := 0
	for _, sub := range subs {
		resources, err := lister.ListResources(ctx, sub.ID, token)
		if err != nil {
			failed++
			logger.Error().Err(err).Str("subscription", sub.Name).Msg("subscription skipped")
			continue
		}

		rows := tagexport.Rows(sub.Name, resources, table)
		values := make([][]string, 0, len(rows))
		for _, row := range rows {
			values = append(values, row.Values())
		}
		logger.Info().Str("subscription", sub.Name).Int("resources", len(resources)).Int("tags", len(rows)).Msg("tags collected")

		fmt.Fprintln(a.Stdout, sub.Name)
		if err := export.WriteGrid(a.Stdout, tagexport.Header(), values); err != nil {
			return err
		}
		if opts.CSV {
			path := filepath.Join(cfg.Export.OutputDir, export.TagsFileName(sub.Name))
			if err := export.WriteRecordsCSV(path, tagexport.Header(), values); err != nil {
				return err
			}
			logger.Info().Str("file", path).Msg("tag csv written")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrSubscriptionsFailed, failed, len(subs))
	}
	return nil
}

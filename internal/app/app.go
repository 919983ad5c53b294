package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"azure-cost-alerts/internal/alerting"
	"azure-cost-alerts/internal/azauth"
	"azure-cost-alerts/internal/config"
	"azure-cost-alerts/internal/fetcher"
	"azure-cost-alerts/internal/metrics"
	"azure-cost-alerts/internal/subscriptions"
	"azure-cost-alerts/internal/version"
)

// ErrSubscriptionsFailed reports that at least one subscription was skipped during a run.
var ErrSubscriptionsFailed = errors.New("one or more subscriptions failed")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	ConfigPath string
	Logger     zerolog.Logger
	Stdout     io.Writer

	mu     sync.RWMutex
	config *config.Config

	now        func() time.Time
	newBackend func(ctx context.Context, cfg *config.Config, rec *metrics.Recorder, logger zerolog.Logger) (*backend, error)
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	a := &App{
		Logger: logger.With().Str("component", "app").Logger(),
		Stdout: os.Stdout,
		config: cfg,
		now:    time.Now,
	}
	a.newBackend = a.buildBackend
	return a
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// SetConfig swaps the active configuration; runs already in flight keep the old one.
func (a *App) SetConfig(cfg *config.Config) {
	a.mu.Lock()
	a.config = cfg
	a.mu.Unlock()
}

// backend bundles the provider specific collaborators of one run.
type backend struct {
	source fetcher.CostRecordSource
	lister subscriptions.Lister
	tokens azauth.TokenProvider
	client *fetcher.Client
}

func (a *App) runLogger() zerolog.Logger {
	return a.Logger.With().Str("run_id", uuid.NewString()).Logger()
}

func (a *App) newClient(cfg *config.Config, rec *metrics.Recorder, logger zerolog.Logger) *fetcher.Client {
	userAgent := cfg.Azure.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	return fetcher.NewClient(fetcher.ClientOptions{
		Timeout:         cfg.Azure.RequestTimeout,
		RequestInterval: cfg.Azure.RequestInterval,
		MaxRetries:      cfg.Azure.MaxRetries,
		UserAgent:       userAgent,
		OnResponse:      rec.ObserveResponse,
	}, logger)
}

func (a *App) buildBackend(ctx context.Context, cfg *config.Config, rec *metrics.Recorder, logger zerolog.Logger) (*backend, error) {
	switch strings.ToLower(cfg.Analysis.Provider) {
	case "aws":
		awsCfg, err := subscriptions.LoadAWSConfig(ctx, cfg.AWS.Profile, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		return &backend{
			source: fetcher.NewCostExplorer(awsCfg, fetcher.CostExplorerOptions{Metric: cfg.AWS.Metric}, logger),
			lister: subscriptions.NewAWSLister(awsCfg, cfg.AWS.AccountName),
			tokens: azauth.Static(""),
		}, nil
	default:
		cred, err := azauth.NewCredential(cfg.Azure.Credential)
		if err != nil {
			return nil, err
		}
		lister, err := subscriptions.NewAzureLister(cred)
		if err != nil {
			return nil, err
		}
		client := a.newClient(cfg, rec, logger)
		return &backend{
			source: fetcher.NewCostManagement(fetcher.CostManagementOptions{
				ManagementURL: cfg.Azure.ManagementURL,
				APIVersion:    cfg.Azure.APIVersion,
			}, client, logger),
			lister: lister,
			tokens: azauth.NewProvider(cred, azauth.ManagementScope, logger),
			client: client,
		}, nil
	}
}

func (a *App) newNotifier(cfg *config.Config) alerting.Notifier {
	if cfg.Alerting.Enabled && cfg.Alerting.Telegram.Enabled {
		tg := cfg.Alerting.Telegram
		return alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, tg.Timeout, a.Logger)
	}
	return alerting.Nop{}
}

func withProvider(cfg *config.Config, provider string) (*config.Config, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || provider == cfg.Analysis.Provider {
		return cfg, nil
	}
	if provider != "azure" && provider != "aws" {
		return nil, fmt.Errorf("provider must be azure or aws, got %q", provider)
	}
	clone := *cfg
	clone.Analysis.Provider = provider
	return &clone, nil
}

package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"azure-cost-alerts/internal/logging"
)

const envPrefix = "AZCOSTALERT"

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Azure    AzureConfig    `mapstructure:"azure"`
	AWS      AWSConfig      `mapstructure:"aws"`
	Export   ExportConfig   `mapstructure:"export"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Tags     TagsConfig     `mapstructure:"tags"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// AnalysisConfig selects the cost provider and run shape.
type AnalysisConfig struct {
	Provider string `mapstructure:"provider"`
	// Timezone decides which calendar day is "yesterday".
	Timezone string `mapstructure:"timezone"`
	Workers  int    `mapstructure:"workers"`
}

// AzureConfig covers management API access.
type AzureConfig struct {
	Credential          string        `mapstructure:"credential"`
	ManagementURL       string        `mapstructure:"management_url"`
	APIVersion          string        `mapstructure:"api_version"`
	ResourcesAPIVersion string        `mapstructure:"resources_api_version"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	RequestInterval     time.Duration `mapstructure:"request_interval"`
	MaxRetries          int           `mapstructure:"max_retries"`
	UserAgent           string        `mapstructure:"user_agent"`
}

// AWSConfig covers Cost Explorer access.
type AWSConfig struct {
	Profile     string `mapstructure:"profile"`
	Region      string `mapstructure:"region"`
	Metric      string `mapstructure:"metric"`
	AccountName string `mapstructure:"account_name"`
}

// ExportConfig sets report output behaviour.
type ExportConfig struct {
	OutputDir     string `mapstructure:"output_dir"`
	CSV           bool   `mapstructure:"csv"`
	XLSX          bool   `mapstructure:"xlsx"`
	Chart         bool   `mapstructure:"chart"`
	Format        string `mapstructure:"format"`
	DecimalPlaces int32  `mapstructure:"decimal_places"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig Telegram bot parameters.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WatchConfig governs scheduled runs.
type WatchConfig struct {
	Schedule    string `mapstructure:"schedule"`
	RunOnStart  bool   `mapstructure:"run_on_start"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// TagsConfig configures the tag inventory.
type TagsConfig struct {
	SupportTable string `mapstructure:"support_table"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Watch reloads the configuration file on change and hands every valid result to onChange.
// It returns false when no file backs the configuration.
func Watch(path string, logger zerolog.Logger, onChange func(*Config)) (bool, error) {
	_, v, err := load(path)
	if err != nil {
		return false, err
	}
	if v.ConfigFileUsed() == "" {
		return false, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Error().Err(err).Str("file", e.Name).Msg("ignoring invalid configuration change")
			return
		}
		logger.Info().Str("file", e.Name).Msg("configuration reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
	return true, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "azcostalert")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("analysis.provider", "azure")
	v.SetDefault("analysis.timezone", "UTC")
	v.SetDefault("analysis.workers", 1)

	v.SetDefault("azure.credential", "cli")
	v.SetDefault("azure.management_url", "https://management.azure.com")
	v.SetDefault("azure.api_version", "2021-10-01")
	v.SetDefault("azure.resources_api_version", "2021-04-01")
	v.SetDefault("azure.request_timeout", "60s")
	v.SetDefault("azure.request_interval", "1s")
	v.SetDefault("azure.max_retries", 5)

	v.SetDefault("aws.metric", "UnblendedCost")

	v.SetDefault("export.output_dir", ".")
	v.SetDefault("export.csv", false)
	v.SetDefault("export.xlsx", false)
	v.SetDefault("export.chart", false)
	v.SetDefault("export.format", "table")
	v.SetDefault("export.decimal_places", 3)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("watch.schedule", "0 7 * * *")
	v.SetDefault("watch.run_on_start", false)
	v.SetDefault("watch.metrics_addr", ":9102")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Analysis.Provider {
	case "azure", "aws":
	default:
		return fmt.Errorf("analysis.provider must be azure or aws, got %q", c.Analysis.Provider)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("analysis.workers must be greater than zero")
	}
	switch strings.ToLower(c.Azure.Credential) {
	case "cli", "default":
	default:
		return fmt.Errorf("azure.credential must be cli or default, got %q", c.Azure.Credential)
	}
	if c.Azure.MaxRetries < 0 {
		return fmt.Errorf("azure.max_retries cannot be negative")
	}
	if c.Azure.RequestInterval < 0 {
		return fmt.Errorf("azure.request_interval cannot be negative")
	}
	if err := ValidateFormat(c.Export.Format); err != nil {
		return err
	}
	if c.Export.DecimalPlaces < 0 {
		return fmt.Errorf("export.decimal_places cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return fmt.Errorf("watch.schedule: %w", err)
	}
	return nil
}

// ValidateFormat checks a report output format.
func ValidateFormat(format string) error {
	switch format {
	case "table", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("output format must be table, json or yaml, got %q", format)
	}
}

// Location resolves the analysis time zone.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Analysis.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("analysis.timezone: %w", err)
	}
	return loc, nil
}

// ResolveWorkers returns either the CLI override or config default.
func (c *Config) ResolveWorkers(override int) int {
	if override > 0 {
		return override
	}
	return c.Analysis.Workers
}

// Package core contains the Unified Priority Engine: source adapters,
// dimension scorers, the score composer, the rule engine, the selector,
// explainability, and the engine facade that fetches and ranks sources.
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/valter-silva-au/attention/pkg/models"
)

// ConfigFileName is the base name of the global config file (without extension).
const ConfigFileName = ".attnconfig"

// EnvPrefix prefixes environment variables that override config keys,
// e.g. ATTN_PRIORITY_MIN_SCORE.
const EnvPrefix = "ATTN"

// ConfigurationManager loads and validates the global configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for reading
// YAML configuration files and environment overrides.
type viperConfigManager struct {
	// basePath is the root directory where .attnconfig.yaml and .env reside.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with defaults for basePath.
func DefaultGlobalConfig(basePath string) *models.GlobalConfig {
	return &models.GlobalConfig{
		Priority: models.DefaultPriorityConfig(),
		Sources: models.SourcesConfig{
			Dir: filepath.Join(basePath, "sources"),
		},
		GoogleCalendar: models.GoogleCalendarConfig{
			CalendarID:     "primary",
			LookaheadHours: 48,
		},
		Alerts: models.AlertsConfig{
			SourceFailureStreak: 3,
			EmptyRunStreak:      3,
		},
		EventsPath: filepath.Join(basePath, ".attn_events.jsonl"),
	}
}

// LoadGlobalConfig reads .attnconfig.yaml from the base path. A .env file in
// the base path is loaded first so its values act as environment overrides.
// If the config file does not exist, defaults (plus env overrides) are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig(cm.basePath)

	envFile := filepath.Join(cm.basePath, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	p := cfg.Priority
	v.SetDefault("priority.weights.urgency", p.Weights.Urgency)
	v.SetDefault("priority.weights.importance", p.Weights.Importance)
	v.SetDefault("priority.weights.recency", p.Weights.Recency)
	v.SetDefault("priority.weights.commitment", p.Weights.Commitment)
	v.SetDefault("priority.weights.effort", p.Weights.Effort)
	v.SetDefault("priority.min_score", p.MinScore)
	v.SetDefault("priority.max_items", p.MaxItems)
	v.SetDefault("priority.max_items_per_source", p.MaxItemsPerSource)
	v.SetDefault("priority.company_stale_threshold_days", p.CompanyStaleThreshold)
	v.SetDefault("priority.strict_max_items", p.StrictMaxItems)
	v.SetDefault("priority.fetch_timeout", p.FetchTimeout)
	v.SetDefault("sources.dir", cfg.Sources.Dir)
	v.SetDefault("sources.sqlite_path", cfg.Sources.SQLitePath)
	v.SetDefault("calendar.google.enabled", cfg.GoogleCalendar.Enabled)
	v.SetDefault("calendar.google.calendar_id", cfg.GoogleCalendar.CalendarID)
	v.SetDefault("calendar.google.credentials_file", "")
	v.SetDefault("calendar.google.token_file", "")
	v.SetDefault("calendar.google.lookahead_hours", cfg.GoogleCalendar.LookaheadHours)
	v.SetDefault("alerts.slack_webhook", "")
	v.SetDefault("alerts.source_failure_streak", cfg.Alerts.SourceFailureStreak)
	v.SetDefault("alerts.max_dropped_per_run", cfg.Alerts.MaxDroppedPerRun)
	v.SetDefault("alerts.empty_run_streak", cfg.Alerts.EmptyRunStreak)
	v.SetDefault("events.path", cfg.EventsPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
		// No config file found: defaults and env overrides still apply.
	}

	cfg.Priority.Weights = models.PriorityWeights{
		Urgency:    v.GetFloat64("priority.weights.urgency"),
		Importance: v.GetFloat64("priority.weights.importance"),
		Recency:    v.GetFloat64("priority.weights.recency"),
		Commitment: v.GetFloat64("priority.weights.commitment"),
		Effort:     v.GetFloat64("priority.weights.effort"),
	}
	cfg.Priority.MinScore = v.GetFloat64("priority.min_score")
	cfg.Priority.MaxItems = v.GetInt("priority.max_items")
	cfg.Priority.MaxItemsPerSource = v.GetInt("priority.max_items_per_source")
	cfg.Priority.CompanyStaleThreshold = v.GetInt("priority.company_stale_threshold_days")
	cfg.Priority.StrictMaxItems = v.GetBool("priority.strict_max_items")
	cfg.Priority.FetchTimeout = v.GetDuration("priority.fetch_timeout")

	cfg.Priority.SourceCaps = sourceCaps(v)

	cfg.Sources.Dir = v.GetString("sources.dir")
	cfg.Sources.SQLitePath = v.GetString("sources.sqlite_path")
	cfg.GoogleCalendar = models.GoogleCalendarConfig{
		Enabled:         v.GetBool("calendar.google.enabled"),
		CalendarID:      v.GetString("calendar.google.calendar_id"),
		CredentialsFile: v.GetString("calendar.google.credentials_file"),
		TokenFile:       v.GetString("calendar.google.token_file"),
		LookaheadHours:  v.GetInt("calendar.google.lookahead_hours"),
	}
	cfg.Alerts = models.AlertsConfig{
		SlackWebhook:        v.GetString("alerts.slack_webhook"),
		SourceFailureStreak: v.GetInt("alerts.source_failure_streak"),
		MaxDroppedPerRun:    v.GetInt("alerts.max_dropped_per_run"),
		EmptyRunStreak:      v.GetInt("alerts.empty_run_streak"),
	}
	cfg.EventsPath = v.GetString("events.path")

	// Relative paths are resolved against the base path.
	cfg.Sources.Dir = cm.resolve(cfg.Sources.Dir)
	cfg.Sources.SQLitePath = cm.resolve(cfg.Sources.SQLitePath)
	cfg.EventsPath = cm.resolve(cfg.EventsPath)
	cfg.GoogleCalendar.CredentialsFile = cm.resolve(cfg.GoogleCalendar.CredentialsFile)
	cfg.GoogleCalendar.TokenFile = cm.resolve(cfg.GoogleCalendar.TokenFile)

	return cfg, nil
}

func (cm *viperConfigManager) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cm.basePath, path)
}

// sourceCaps collects priority.source_caps from the file and from per-type
// environment variables such as ATTN_PRIORITY_SOURCE_CAPS_TASK. Unknown keys
// from the file are kept so validation can report them.
func sourceCaps(v *viper.Viper) map[models.SourceType]int {
	keys := make(map[string]bool)
	for key := range v.GetStringMap("priority.source_caps") {
		keys[key] = true
	}
	for _, st := range models.AllSourceTypes {
		if v.IsSet("priority.source_caps." + string(st)) {
			keys[string(st)] = true
		}
	}
	if len(keys) == 0 {
		return nil
	}
	caps := make(map[models.SourceType]int, len(keys))
	for key := range keys {
		caps[models.SourceType(key)] = v.GetInt("priority.source_caps." + key)
	}
	return caps
}

// ValidateConfig checks the configuration for invalid values and returns one
// error listing every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string
	if err := ValidatePriorityConfig(cfg.Priority); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.GoogleCalendar.Enabled {
		if cfg.GoogleCalendar.CredentialsFile == "" {
			errs = append(errs, "calendar.google.credentials_file is required when calendar.google.enabled is true")
		}
		if cfg.GoogleCalendar.TokenFile == "" {
			errs = append(errs, "calendar.google.token_file is required when calendar.google.enabled is true")
		}
		if cfg.GoogleCalendar.LookaheadHours <= 0 {
			errs = append(errs, fmt.Sprintf("calendar.google.lookahead_hours must be positive, got %d", cfg.GoogleCalendar.LookaheadHours))
		}
	}

	if cfg.Alerts.SourceFailureStreak < 1 {
		errs = append(errs, fmt.Sprintf("alerts.source_failure_streak must be at least 1, got %d", cfg.Alerts.SourceFailureStreak))
	}
	if cfg.Alerts.EmptyRunStreak < 1 {
		errs = append(errs, fmt.Sprintf("alerts.empty_run_streak must be at least 1, got %d", cfg.Alerts.EmptyRunStreak))
	}
	if cfg.Alerts.MaxDroppedPerRun < 0 {
		errs = append(errs, fmt.Sprintf("alerts.max_dropped_per_run must be non-negative, got %d", cfg.Alerts.MaxDroppedPerRun))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidatePriorityConfig reports values that cannot be meaningful. Weights
// summing above 1 and non-positive caps are allowed: the composer clamps and
// the selector treats a cap of zero as "exclude this source".
func ValidatePriorityConfig(cfg models.PriorityConfig) error {
	var errs []string

	weights := []struct {
		name  string
		value float64
	}{
		{"urgency", cfg.Weights.Urgency},
		{"importance", cfg.Weights.Importance},
		{"recency", cfg.Weights.Recency},
		{"commitment", cfg.Weights.Commitment},
		{"effort", cfg.Weights.Effort},
	}
	for _, w := range weights {
		if w.value < 0 {
			errs = append(errs, fmt.Sprintf("priority.weights.%s must be non-negative, got %v", w.name, w.value))
		}
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		errs = append(errs, fmt.Sprintf("priority.min_score must be between 0 and 1, got %v", cfg.MinScore))
	}
	if cfg.CompanyStaleThreshold < 1 {
		errs = append(errs, fmt.Sprintf("priority.company_stale_threshold_days must be at least 1, got %d", cfg.CompanyStaleThreshold))
	}
	if cfg.FetchTimeout < 0 {
		errs = append(errs, fmt.Sprintf("priority.fetch_timeout must not be negative, got %s", cfg.FetchTimeout))
	}
	for st := range cfg.SourceCaps {
		if !st.Valid() {
			errs = append(errs, fmt.Sprintf("priority.source_caps key %q is not a known source type", st))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("priority config invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

package models

import "time"

// PriorityWeights holds the linear weight of each scoring dimension.
// By convention they sum to at most 1; the composer clamps its output
// instead of enforcing that.
type PriorityWeights struct {
	Urgency    float64 `yaml:"urgency" mapstructure:"urgency" json:"urgency"`
	Importance float64 `yaml:"importance" mapstructure:"importance" json:"importance"`
	Recency    float64 `yaml:"recency" mapstructure:"recency" json:"recency"`
	Commitment float64 `yaml:"commitment" mapstructure:"commitment" json:"commitment"`
	Effort     float64 `yaml:"effort" mapstructure:"effort" json:"effort"`
}

// Sum returns the total of all weights.
func (w PriorityWeights) Sum() float64 {
	return w.Urgency + w.Importance + w.Recency + w.Commitment + w.Effort
}

// PriorityConfig tunes one ranking pass. It is passed by value and never
// mutated while a pass is running.
type PriorityConfig struct {
	Weights               PriorityWeights    `yaml:"weights" mapstructure:"weights" json:"weights"`
	MinScore              float64            `yaml:"min_score" mapstructure:"min_score" json:"min_score"`
	MaxItems              int                `yaml:"max_items" mapstructure:"max_items" json:"max_items"`
	MaxItemsPerSource     int                `yaml:"max_items_per_source" mapstructure:"max_items_per_source" json:"max_items_per_source"`
	CompanyStaleThreshold int                `yaml:"company_stale_threshold_days" mapstructure:"company_stale_threshold_days" json:"company_stale_threshold_days"`
	SourceCaps            map[SourceType]int `yaml:"source_caps,omitempty" mapstructure:"source_caps" json:"source_caps,omitempty"`
	StrictMaxItems        bool               `yaml:"strict_max_items" mapstructure:"strict_max_items" json:"strict_max_items"`
	FetchTimeout          time.Duration      `yaml:"fetch_timeout" mapstructure:"fetch_timeout" json:"fetch_timeout"`
}

// DefaultPriorityConfig returns the configuration used when nothing is
// overridden.
func DefaultPriorityConfig() PriorityConfig {
	return PriorityConfig{
		Weights: PriorityWeights{
			Urgency:    0.35,
			Importance: 0.30,
			Recency:    0.15,
			Commitment: 0.15,
			Effort:     0.05,
		},
		MinScore:              0.3,
		MaxItems:              10,
		MaxItemsPerSource:     4,
		CompanyStaleThreshold: 14,
		FetchTimeout:          5 * time.Second,
	}
}

// CapFor returns the per-source cap for st, honouring SourceCaps overrides.
func (c PriorityConfig) CapFor(st SourceType) int {
	if n, ok := c.SourceCaps[st]; ok {
		return n
	}
	return c.MaxItemsPerSource
}

// Clone returns a deep copy so per-call overrides never leak into the
// process-wide configuration.
func (c PriorityConfig) Clone() PriorityConfig {
	out := c
	if c.SourceCaps != nil {
		out.SourceCaps = make(map[SourceType]int, len(c.SourceCaps))
		for k, v := range c.SourceCaps {
			out.SourceCaps[k] = v
		}
	}
	return out
}

// SourcesConfig locates the snapshot stores that feed the engine.
type SourcesConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	SQLitePath string `yaml:"sqlite_path,omitempty" mapstructure:"sqlite_path"`
}

// GoogleCalendarConfig enables pulling meetings from Google Calendar instead
// of the local calendar snapshot.
type GoogleCalendarConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	CalendarID      string `yaml:"calendar_id" mapstructure:"calendar_id"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	TokenFile       string `yaml:"token_file" mapstructure:"token_file"`
	LookaheadHours  int    `yaml:"lookahead_hours" mapstructure:"lookahead_hours"`
}

// AlertsConfig sets the alert thresholds and the optional Slack webhook that
// receives alert summaries.
type AlertsConfig struct {
	SlackWebhook        string `yaml:"slack_webhook,omitempty" mapstructure:"slack_webhook"`
	SourceFailureStreak int    `yaml:"source_failure_streak" mapstructure:"source_failure_streak"`
	MaxDroppedPerRun    int    `yaml:"max_dropped_per_run" mapstructure:"max_dropped_per_run"`
	EmptyRunStreak      int    `yaml:"empty_run_streak" mapstructure:"empty_run_streak"`
}

// GlobalConfig holds system-wide settings read from .attnconfig via Viper.
type GlobalConfig struct {
	Priority       PriorityConfig       `yaml:"priority" mapstructure:"priority"`
	Sources        SourcesConfig        `yaml:"sources" mapstructure:"sources"`
	GoogleCalendar GoogleCalendarConfig `yaml:"-" mapstructure:"-"`
	Alerts         AlertsConfig         `yaml:"alerts" mapstructure:"alerts"`
	EventsPath     string               `yaml:"-" mapstructure:"-"`
}

// MarshalYAML nests the calendar and events settings under the same keys
// .attnconfig.yaml uses (calendar.google.*, events.path), so shown output
// can be pasted back into the file.
func (c GlobalConfig) MarshalYAML() (any, error) {
	type calendar struct {
		Google GoogleCalendarConfig `yaml:"google"`
	}
	type events struct {
		Path string `yaml:"path"`
	}
	return struct {
		Priority PriorityConfig `yaml:"priority"`
		Sources  SourcesConfig  `yaml:"sources"`
		Calendar calendar       `yaml:"calendar"`
		Alerts   AlertsConfig   `yaml:"alerts"`
		Events   events         `yaml:"events"`
	}{c.Priority, c.Sources, calendar{c.GoogleCalendar}, c.Alerts, events{c.EventsPath}}, nil
}

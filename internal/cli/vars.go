package cli

import (
	"github.com/valter-silva-au/attention/internal/core"
	"github.com/valter-silva-au/attention/internal/observability"
	"github.com/valter-silva-au/attention/internal/storage"
	"github.com/valter-silva-au/attention/pkg/models"
)

// Engine and configuration, set during app initialization in app.go.
var (
	Engine    core.PriorityEngine
	Actions   core.ActionApplier
	Store     storage.SourceStore
	ConfigMgr core.ConfigurationManager
	GlobalCfg *models.GlobalConfig
	BasePath  string
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	ActionLog   core.EventLogger
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)

// priorityConfig returns the configured priority settings, or the defaults
// when no configuration was loaded.
func priorityConfig() models.PriorityConfig {
	if GlobalCfg == nil {
		return models.DefaultPriorityConfig()
	}
	return GlobalCfg.Priority.Clone()
}

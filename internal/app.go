// Package internal provides the App struct that wires all components of the
// attention system together and initializes the CLI layer.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/attention/internal/cli"
	"github.com/valter-silva-au/attention/internal/core"
	"github.com/valter-silva-au/attention/internal/integration"
	"github.com/valter-silva-au/attention/internal/observability"
	"github.com/valter-silva-au/attention/internal/storage"
	"github.com/valter-silva-au/attention/pkg/models"
)

// errReadOnlySource is returned for actions on a source type whose items
// come from an external system attn cannot write to.
var errReadOnlySource = errors.New("source is read-only")

// App holds all service dependencies for the attention system.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Storage layer
	Store    storage.SourceStore
	Fetchers []core.SourceFetcher

	// Core services
	Engine  core.PriorityEngine
	Actions core.ActionApplier

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier

	closers []io.Closer
}

// NewApp creates and wires all components of the attention system.
// basePath is the root directory holding .attnconfig.yaml and, by default,
// the source snapshots and event log.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	globalCfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	app.Config = globalCfg

	// --- Storage layer ---
	if globalCfg.Sources.SQLitePath != "" {
		sqlStore, err := storage.OpenSQLiteSourceStore(resolvePath(basePath, globalCfg.Sources.SQLitePath), nil)
		if err != nil {
			return nil, fmt.Errorf("opening source database: %w", err)
		}
		app.Store = sqlStore
		app.closers = append(app.closers, sqlStore)
	} else {
		app.Store = storage.NewFileSourceStore(resolvePath(basePath, globalCfg.Sources.Dir), nil)
	}

	readOnly := make(map[models.SourceType]bool)
	for _, f := range storage.NewFetchers(app.Store, models.AllSourceTypes...) {
		if f.Type == models.SourceCalendarEvent && globalCfg.GoogleCalendar.Enabled {
			app.Fetchers = append(app.Fetchers, googleCalendarFetcher(basePath, globalCfg.GoogleCalendar))
			readOnly[models.SourceCalendarEvent] = true
			continue
		}
		app.Fetchers = append(app.Fetchers, f)
	}
	app.Actions = &actionRouter{store: app.Store, readOnly: readOnly}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(resolvePath(basePath, globalCfg.EventsPath))
	if err != nil {
		// Non-fatal: ranking works without an event log.
		app.EventLog = nil
	}
	var evtLogger core.EventLogger
	if app.EventLog != nil {
		evtLogger = observability.EventLogger{Log: app.EventLog}
		app.closers = append(app.closers, app.EventLog)

		thresholds := observability.DefaultAlertThresholds()
		if globalCfg.Alerts.SourceFailureStreak > 0 {
			thresholds.SourceFailureStreak = globalCfg.Alerts.SourceFailureStreak
		}
		if globalCfg.Alerts.MaxDroppedPerRun > 0 {
			thresholds.MaxDroppedPerRun = globalCfg.Alerts.MaxDroppedPerRun
		}
		if globalCfg.Alerts.EmptyRunStreak > 0 {
			thresholds.EmptyRunStreak = globalCfg.Alerts.EmptyRunStreak
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if globalCfg.Alerts.SlackWebhook != "" {
		app.Notifier = observability.NewSlackNotifier(globalCfg.Alerts.SlackWebhook)
	}

	// --- Core services ---
	app.Engine = core.NewPriorityEngine(app.Fetchers, evtLogger, nil)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.ConfigMgr = app.ConfigMgr
	cli.GlobalCfg = globalCfg
	cli.Engine = app.Engine
	cli.Actions = app.Actions
	cli.Store = app.Store

	cli.EventLog = app.EventLog
	cli.ActionLog = evtLogger
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// Close releases resources held by the App, such as the event log file handle
// and the source database.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the base path for attention data.
// It checks for ATTN_HOME env var, then walks up from the current directory
// looking for .attnconfig.yaml, then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("ATTN_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName+".yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

// resolvePath anchors a configured relative path at basePath.
func resolvePath(basePath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(basePath, p)
}

// googleCalendarFetcher builds the Google Calendar fetcher. A setup failure
// becomes a fetcher that always fails, so the ranking reports the calendar
// source as unavailable instead of refusing to start.
func googleCalendarFetcher(basePath string, cfg models.GoogleCalendarConfig) core.SourceFetcher {
	srv, err := integration.NewGoogleCalendarService(context.Background(),
		resolvePath(basePath, cfg.CredentialsFile), resolvePath(basePath, cfg.TokenFile))
	if err != nil {
		return failingFetcher{sourceType: models.SourceCalendarEvent, err: fmt.Errorf("google calendar setup: %w", err)}
	}
	lookahead := time.Duration(cfg.LookaheadHours) * time.Hour
	return integration.NewGoogleCalendarFetcher(srv, cfg.CalendarID, lookahead, nil)
}

// --- Adapters ---

// failingFetcher reports a fixed error for one source type.
type failingFetcher struct {
	sourceType models.SourceType
	err        error
}

func (f failingFetcher) SourceType() models.SourceType { return f.sourceType }

func (f failingFetcher) Fetch(context.Context) ([]models.Source, error) { return nil, f.err }

// actionRouter adapts storage.SourceStore to core.ActionApplier, refusing
// actions on source types served by an external read-only system.
type actionRouter struct {
	store    storage.SourceStore
	readOnly map[models.SourceType]bool
}

func (r *actionRouter) Resolve(ctx context.Context, st models.SourceType, sourceID string) error {
	if r.readOnly[st] {
		return fmt.Errorf("resolving %s: %w", st, errReadOnlySource)
	}
	return r.store.Resolve(ctx, st, sourceID)
}

func (r *actionRouter) Snooze(ctx context.Context, st models.SourceType, sourceID string, until time.Time) error {
	if r.readOnly[st] {
		return fmt.Errorf("snoozing %s: %w", st, errReadOnlySource)
	}
	return r.store.Snooze(ctx, st, sourceID, until)
}
